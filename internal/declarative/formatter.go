package declarative

import (
	"encoding/json"
	"fmt"
	"io"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// FormatText writes a human-readable plan to w.
// If noColor is true, ANSI codes are suppressed.
func FormatText(w io.Writer, plan *Plan, noColor bool) {
	c := func(code string) string {
		if noColor {
			return ""
		}
		return code
	}

	if !plan.HasChanges() {
		fmt.Fprintln(w, "No changes. Catalog is up-to-date.")
		return
	}

	lastPath := "\x00"
	for _, a := range plan.Actions {
		if a.FilePath != lastPath {
			if a.FilePath != "" {
				fmt.Fprintf(w, "\n%s# %s%s\n", c(colorCyan), a.FilePath, c(colorReset))
			} else {
				fmt.Fprintf(w, "\n%s# (catalog only)%s\n", c(colorCyan), c(colorReset))
			}
			lastPath = a.FilePath
		}

		switch a.Operation {
		case OpCreate:
			fmt.Fprintf(w, "  %s+%s table %q will be created\n", c(colorGreen), c(colorReset), a.TableName)
			fmt.Fprintf(w, "      %sconnector%s: %s\n", c(colorDim), c(colorReset), a.Desired.ConnectorType)
			if len(a.Desired.Fields) > 0 {
				fmt.Fprintf(w, "      %sfields%s: %s\n", c(colorDim), c(colorReset), formatFields(a.Desired.Fields))
			}
			if len(a.Desired.Options) > 0 {
				fmt.Fprintf(w, "      %soptions%s: %s\n", c(colorDim), c(colorReset), formatMap(a.Desired.Options))
			}
		case OpUpdate:
			fmt.Fprintf(w, "  %s~%s table %q will be replaced\n", c(colorYellow), c(colorReset), a.TableName)
			for _, d := range a.Changes {
				fmt.Fprintf(w, "      %s: %q -> %q\n", d.Field, d.OldValue, d.NewValue)
			}
		case OpDelete:
			fmt.Fprintf(w, "  %s-%s table %q will be dropped\n", c(colorRed), c(colorReset), a.TableName)
		}
	}

	s := plan.Summary()
	fmt.Fprintf(w, "\n%sPlan:%s %d to create, %d to replace, %d to drop.\n",
		c(colorDim), c(colorReset), s.Creates, s.Updates, s.Deletes)
}

// FormatJSON writes the plan as JSON to w.
func FormatJSON(w io.Writer, plan *Plan) error {
	type jsonAction struct {
		Operation string      `json:"operation"`
		Table     string      `json:"table"`
		Path      string      `json:"path,omitempty"`
		Changes   []FieldDiff `json:"changes,omitempty"`
	}
	type jsonPlan struct {
		Actions []jsonAction `json:"actions"`
		Summary PlanSummary  `json:"summary"`
	}

	jp := jsonPlan{
		Actions: make([]jsonAction, 0, len(plan.Actions)),
		Summary: plan.Summary(),
	}
	for _, a := range plan.Actions {
		jp.Actions = append(jp.Actions, jsonAction{
			Operation: string(a.Operation),
			Table:     a.TableName,
			Path:      a.FilePath,
			Changes:   a.Changes,
		})
	}

	data, err := json.MarshalIndent(jp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
