package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"duck-connect/internal/declarative"
)

func newApplyCmd(client *Client) *cobra.Command {
	var (
		path         string
		prune        bool
		dryRun       bool
		autoApprove  bool
		noColor      bool
		allowUnknown bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply declarative table files to the catalog",
		Long: "Reads ExternalTable YAML documents, compares them with the tables the " +
			"server holds and creates, replaces or (with --prune) drops tables to match.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			desired, err := declarative.LoadPath(path, declarative.LoadOptions{AllowUnknownFields: allowUnknown})
			if err != nil {
				return fmt.Errorf("load tables: %w", err)
			}
			if verrs := declarative.Validate(desired); len(verrs) > 0 {
				_, _ = fmt.Fprintf(errOut, "Configuration has %d validation error(s):\n", len(verrs))
				for _, ve := range verrs {
					_, _ = fmt.Fprintf(errOut, "  - %s\n", ve.Error())
				}
				return fmt.Errorf("%d validation error(s)", len(verrs))
			}

			actual, err := client.ListDefinitions(cmd.Context())
			if err != nil {
				return fmt.Errorf("read catalog state: %w", err)
			}
			plan, err := declarative.Diff(desired, actual, declarative.DiffOptions{Prune: prune})
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == outputJSON {
				if err := declarative.FormatJSON(out, plan); err != nil {
					return err
				}
			} else {
				declarative.FormatText(out, plan, noColor)
			}
			if dryRun || !plan.HasChanges() {
				return nil
			}

			if !autoApprove {
				if !isStdinTTY() {
					return fmt.Errorf("confirmation required but stdin is not a terminal; use --auto-approve")
				}
				ok, err := confirm(cmd.InOrStdin(), out)
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(out, "Apply cancelled.")
					return nil
				}
			}

			logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
			if err := declarative.Apply(cmd.Context(), client, plan, logger); err != nil {
				return fmt.Errorf("apply: %w", err)
			}
			s := plan.Summary()
			_, _ = fmt.Fprintf(errOut, "\nApply complete: %d created, %d replaced, %d dropped.\n", s.Creates, s.Updates, s.Deletes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "./tables", "Table file or directory of table files")
	cmd.Flags().BoolVar(&prune, "prune", false, "Drop tables that no file declares")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without applying it")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip interactive confirmation prompt")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&allowUnknown, "allow-unknown-fields", false, "Ignore unknown YAML keys")
	return cmd
}

func confirm(in io.Reader, out io.Writer) (bool, error) {
	_, _ = fmt.Fprint(out, "\nApply these changes? [y/N] ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}
