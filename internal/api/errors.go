package api

import (
	"context"
	"errors"
	"net/http"

	"duck-connect/internal/connector"
	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var invalid *domain.InvalidTableError
	var schema *domain.SchemaError
	var unknown *domain.UnknownConnectorError
	var mismatch *types.MismatchError
	var resource *domain.ResourceError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &validation),
		errors.As(err, &invalid),
		errors.As(err, &schema),
		errors.As(err, &unknown),
		errors.As(err, &mismatch):
		return http.StatusBadRequest
	case errors.Is(err, connector.ErrNotSupported):
		return http.StatusMethodNotAllowed
	case errors.As(err, &resource):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
