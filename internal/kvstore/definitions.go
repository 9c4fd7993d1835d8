package kvstore

import (
	"context"
	"slices"

	"duck-connect/internal/domain"
)

// CatalogMapName is the map holding external table definitions.
const CatalogMapName = "__sql.catalog"

// DefinitionStore implements domain.TableDefinitionStore on a Map.
// Definitions are copied in and out so callers never share field slices
// or option maps with the store.
type DefinitionStore struct {
	m *Map
}

var _ domain.TableDefinitionStore = (*DefinitionStore)(nil)

// NewDefinitionStore stores definitions in the catalog map of s.
func NewDefinitionStore(s *Store) *DefinitionStore {
	return &DefinitionStore{m: s.Map(CatalogMapName)}
}

func cloneDefinition(def domain.ExternalTableDefinition) *domain.ExternalTableDefinition {
	out := def
	out.Fields = slices.Clone(def.Fields)
	if def.Options != nil {
		out.Options = make(map[string]string, len(def.Options))
		for k, v := range def.Options {
			out.Options[k] = v
		}
	}
	return &out
}

func asDefinition(v any) *domain.ExternalTableDefinition {
	def, _ := v.(*domain.ExternalTableDefinition)
	if def == nil {
		return nil
	}
	return cloneDefinition(*def)
}

// Get implements domain.TableDefinitionStore.
func (s *DefinitionStore) Get(_ context.Context, name string) (*domain.ExternalTableDefinition, error) {
	v, ok := s.m.Get(name)
	if !ok {
		return nil, &domain.TableNotFoundError{Name: name}
	}
	return asDefinition(v), nil
}

// PutIfAbsent implements domain.TableDefinitionStore.
func (s *DefinitionStore) PutIfAbsent(_ context.Context, def domain.ExternalTableDefinition) (*domain.ExternalTableDefinition, error) {
	prev, loaded, err := s.m.PutIfAbsent(def.Name, cloneDefinition(def))
	if err != nil {
		return nil, err
	}
	if !loaded {
		return nil, nil
	}
	return asDefinition(prev), nil
}

// Put implements domain.TableDefinitionStore.
func (s *DefinitionStore) Put(_ context.Context, def domain.ExternalTableDefinition) error {
	return s.m.Put(def.Name, cloneDefinition(def))
}

// Remove implements domain.TableDefinitionStore.
func (s *DefinitionStore) Remove(_ context.Context, name string) (*domain.ExternalTableDefinition, error) {
	prev, ok := s.m.Remove(name)
	if !ok {
		return nil, nil
	}
	return asDefinition(prev), nil
}

// Values implements domain.TableDefinitionStore.
func (s *DefinitionStore) Values(_ context.Context) ([]domain.ExternalTableDefinition, error) {
	entries := s.m.Entries()
	out := make([]domain.ExternalTableDefinition, 0, len(entries))
	for _, e := range entries {
		if def := asDefinition(e.Value); def != nil {
			out = append(out, *def)
		}
	}
	return out, nil
}

// Clear implements domain.TableDefinitionStore.
func (s *DefinitionStore) Clear(_ context.Context) error {
	s.m.Clear()
	return nil
}
