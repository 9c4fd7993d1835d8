package declarative

import "duck-connect/internal/domain"

// Operation is the kind of change an Action makes.
type Operation string

// Operations.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Action represents a single planned change.
type Action struct {
	Operation Operation
	TableName string
	FilePath  string                          // source YAML file path (empty for deletes)
	Desired   *domain.ExternalTableDefinition // nil for Delete
	Actual    *domain.ExternalTableDefinition // nil for Create
	Changes   []FieldDiff
}

// FieldDiff describes a single field change within an Update action.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is the ordered list of changes: deletes first, then creates and
// updates in document order.
type Plan struct {
	Actions []Action
}

// PlanSummary counts actions by operation.
type PlanSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

// Summary returns counts of creates, updates and deletes.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpUpdate:
			s.Updates++
		case OpDelete:
			s.Deletes++
		}
	}
	return s
}

// HasChanges reports whether applying the plan would change anything.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0
}
