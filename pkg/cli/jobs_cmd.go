package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"duck-connect/internal/service/query"
)

func newJobsCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Manage background INSERT ... SELECT jobs",
	}
	cmd.AddCommand(newJobsCreateCmd(client))
	cmd.AddCommand(newJobsDropCmd(client))
	cmd.AddCommand(newJobsListCmd(client))
	return cmd
}

func newJobsCreateCmd(client *Client) *cobra.Command {
	var req query.CreateJobRequest
	cmd := &cobra.Command{
		Use:   "create <name> --into <table> --from <table>",
		Short: "Start a job copying rows from one table into another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			created, err := client.CreateJob(cmd.Context(), req)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]any{"job": req.Name, "created": created})
			}
			if created {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Job %q submitted.\n", req.Name)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Job %q already running, skipped.\n", req.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Table, "into", "", "Table to write")
	cmd.Flags().StringVar(&req.Source, "from", "", "Table to read")
	cmd.Flags().StringSliceVarP(&req.Columns, "columns", "c", nil, "Select list expressions (default: every source column)")
	cmd.Flags().StringVarP(&req.Where, "where", "w", "", "Filter expression over the source")
	cmd.Flags().BoolVar(&req.IfNotExists, "if-not-exists", false, "Do nothing when a job with the name is running")
	_ = cmd.MarkFlagRequired("into")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newJobsDropCmd(client *Client) *cobra.Command {
	var ifExists bool
	cmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.DropJob(cmd.Context(), args[0], ifExists); err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]any{"job": args[0], "dropped": true})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Job %q dropped.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&ifExists, "if-exists", false, "Do not fail when the job is missing or finished")
	return cmd
}

func newJobsListCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := client.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				if jobs == nil {
					jobs = []query.Job{}
				}
				return PrintJSON(cmd.OutOrStdout(), jobs)
			}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{j.Name, j.Source, j.Table, string(j.Status), strconv.FormatInt(j.RowsWritten, 10), j.Error}
			}
			PrintTable(cmd.OutOrStdout(), []string{"name", "source", "table", "status", "rows", "error"}, rows)
			return nil
		},
	}
}
