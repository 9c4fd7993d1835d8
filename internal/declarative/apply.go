package declarative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"duck-connect/internal/domain"
)

// Catalog is the subset of the external catalog that apply needs.
// *catalog.ExternalCatalog implements it.
type Catalog interface {
	CreateTable(ctx context.Context, def domain.ExternalTableDefinition, replace, ifNotExists bool) (bool, error)
	RemoveTable(ctx context.Context, name string, ifExists bool) error
	ListDefinitions(ctx context.Context) ([]domain.ExternalTableDefinition, error)
}

// Apply executes plan against cat. Creates and updates use replace
// semantics; drops tolerate tables that vanished meanwhile. All actions
// are attempted and their errors joined.
func Apply(ctx context.Context, cat Catalog, plan *Plan, logger *slog.Logger) error {
	logger = logger.With("component", "declarative")
	var errs []error
	for _, a := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		var err error
		switch a.Operation {
		case OpCreate, OpUpdate:
			_, err = cat.CreateTable(ctx, *a.Desired, true, false)
		case OpDelete:
			err = cat.RemoveTable(ctx, a.TableName, true)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s table %q: %w", a.Operation, a.TableName, err))
			continue
		}
		logger.Info("applied", "operation", string(a.Operation), "table", a.TableName)
	}
	return errors.Join(errs...)
}

// ApplyDocuments validates docs, plans them against the catalog and
// applies the plan.
func ApplyDocuments(ctx context.Context, cat Catalog, docs []Document, opts DiffOptions, logger *slog.Logger) (*Plan, error) {
	if verrs := Validate(docs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, domain.ErrValidation("invalid table files: %v", errors.Join(errs...))
	}
	actual, err := cat.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := Diff(docs, actual, opts)
	if err != nil {
		return nil, err
	}
	return plan, Apply(ctx, cat, plan, logger)
}
