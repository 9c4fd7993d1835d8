package declarative

import (
	"fmt"
	"strings"

	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "tables/users.yaml" or "table[users]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (f FieldSpec) field() (domain.ExternalField, error) {
	t, err := types.Parse(f.Type)
	if err != nil {
		return domain.ExternalField{}, err
	}
	return domain.ExternalField{Name: f.Name, Type: t, ExternalName: f.ExternalName}, nil
}

// Validate checks documents for structural problems. Connector-specific
// rules are left to the catalog.
func Validate(docs []Document) []ValidationError {
	var errs []ValidationError
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]string, len(docs))
	for _, d := range docs {
		if d.APIVersion != SupportedAPIVersion {
			add(d.FilePath, "unsupported apiVersion %q (expected %q)", d.APIVersion, SupportedAPIVersion)
		}
		if d.Kind != KindExternalTable {
			add(d.FilePath, "unexpected kind %q (expected %q)", d.Kind, KindExternalTable)
		}
		name := d.Metadata.Name
		if strings.TrimSpace(name) == "" {
			add(d.FilePath, "metadata.name is required")
			continue
		}
		path := fmt.Sprintf("table[%s]", name)
		if prev, ok := seen[name]; ok {
			add(path, "declared in both %s and %s", prev, d.FilePath)
		}
		seen[name] = d.FilePath

		if strings.TrimSpace(d.Spec.Connector) == "" {
			add(path, "spec.connector is required")
		}
		columns := make(map[string]bool, len(d.Spec.Fields))
		for i, f := range d.Spec.Fields {
			if strings.TrimSpace(f.Name) == "" {
				add(path, "field %d: name is required", i+1)
				continue
			}
			if columns[f.Name] {
				add(path, "duplicate field %q", f.Name)
			}
			columns[f.Name] = true
			if _, err := f.field(); err != nil {
				add(path, "field %q: %v", f.Name, err)
			}
		}
	}
	return errs
}
