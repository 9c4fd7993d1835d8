package connector

import (
	"fmt"
	"sort"
	"strings"

	"duck-connect/internal/domain"
)

// Registry maps connector type names to connectors. It is built once at
// startup and read-only afterwards. Lookups ignore case.
type Registry struct {
	byType map[string]Connector
}

// NewRegistry registers connectors, rejecting duplicate type names.
func NewRegistry(connectors ...Connector) (*Registry, error) {
	r := &Registry{byType: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		key := strings.ToLower(c.TypeName())
		if key == "" {
			return nil, fmt.Errorf("connector %T has an empty type name", c)
		}
		if _, dup := r.byType[key]; dup {
			return nil, fmt.Errorf("connector type %q registered twice", c.TypeName())
		}
		r.byType[key] = c
	}
	return r, nil
}

// ForType returns the connector serving typeName, or
// *domain.UnknownConnectorError.
func (r *Registry) ForType(typeName string) (Connector, error) {
	c, ok := r.byType[strings.ToLower(typeName)]
	if !ok {
		return nil, &domain.UnknownConnectorError{Type: typeName}
	}
	return c, nil
}

// Types lists the registered type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.byType))
	for _, c := range r.byType {
		out = append(out, c.TypeName())
	}
	sort.Strings(out)
	return out
}
