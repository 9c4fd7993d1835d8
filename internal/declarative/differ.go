package declarative

import (
	"fmt"
	"sort"
	"strings"

	"duck-connect/internal/domain"
)

// DiffOptions configures planning.
type DiffOptions struct {
	// Prune deletes tables that exist in the catalog but not in any file.
	Prune bool
}

// Diff compares desired documents with the definitions currently stored
// and returns the plan that reconciles them. Documents must have passed
// Validate.
func Diff(desired []Document, actual []domain.ExternalTableDefinition, opts DiffOptions) (*Plan, error) {
	plan := &Plan{}
	current := make(map[string]domain.ExternalTableDefinition, len(actual))
	for _, def := range actual {
		current[def.Name] = def
	}

	wanted := make(map[string]bool, len(desired))
	var upserts []Action
	for _, doc := range desired {
		def, err := doc.Definition()
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", doc.Metadata.Name, err)
		}
		wanted[def.Name] = true
		have, ok := current[def.Name]
		if !ok {
			upserts = append(upserts, Action{Operation: OpCreate, TableName: def.Name, FilePath: doc.FilePath, Desired: &def})
			continue
		}
		if changes := diffDefinition(have, def); len(changes) > 0 {
			upserts = append(upserts, Action{
				Operation: OpUpdate, TableName: def.Name, FilePath: doc.FilePath,
				Desired: &def, Actual: &have, Changes: changes,
			})
		}
	}

	if opts.Prune {
		var stale []string
		for name := range current {
			if !wanted[name] {
				stale = append(stale, name)
			}
		}
		sort.Strings(stale)
		for _, name := range stale {
			have := current[name]
			plan.Actions = append(plan.Actions, Action{Operation: OpDelete, TableName: name, Actual: &have})
		}
	}
	plan.Actions = append(plan.Actions, upserts...)
	return plan, nil
}

// diffDefinition lists what differs between a stored definition and a
// desired one. Stored definitions carry resolved fields, so fields are
// only compared when the file declares them.
func diffDefinition(actual, desired domain.ExternalTableDefinition) []FieldDiff {
	var changes []FieldDiff
	if !strings.EqualFold(actual.ConnectorType, desired.ConnectorType) {
		diffField(&changes, "connector", actual.ConnectorType, desired.ConnectorType)
	}
	diffMapField(&changes, "options", actual.Options, desired.Options)
	if len(desired.Fields) > 0 {
		diffField(&changes, "fields", formatFields(actual.Fields), formatFields(desired.Fields))
	}
	return changes
}

func diffField(changes *[]FieldDiff, field, oldVal, newVal string) {
	if oldVal != newVal {
		*changes = append(*changes, FieldDiff{Field: field, OldValue: oldVal, NewValue: newVal})
	}
}

func diffMapField(changes *[]FieldDiff, field string, oldVal, newVal map[string]string) {
	diffField(changes, field, formatMap(oldVal), formatMap(newVal))
}

func formatMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", k, m[k])
	}
	return b.String()
}

func formatFields(fields []domain.ExternalField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + " " + f.Type.String()
		if f.ExternalName != "" && f.ExternalName != f.Name {
			parts[i] += " EXTERNAL NAME " + f.ExternalName
		}
	}
	return strings.Join(parts, ", ")
}
