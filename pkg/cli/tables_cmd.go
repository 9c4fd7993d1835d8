package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"duck-connect/internal/api"
	"duck-connect/internal/domain"
	"duck-connect/internal/types"
)

func newTablesCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tables",
		Aliases: []string{"table"},
		Short:   "Manage external tables",
	}
	cmd.AddCommand(newTablesCreateCmd(client))
	cmd.AddCommand(newTablesDropCmd(client))
	cmd.AddCommand(newTablesListCmd(client))
	cmd.AddCommand(newTablesDescribeCmd(client))
	return cmd
}

// parseFieldFlag parses name:TYPE[:external_name].
func parseFieldFlag(s string) (domain.ExternalField, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return domain.ExternalField{}, fmt.Errorf("invalid field %q: want name:TYPE[:external_name]", s)
	}
	t, err := types.Parse(parts[1])
	if err != nil {
		return domain.ExternalField{}, fmt.Errorf("invalid field %q: %w", s, err)
	}
	f := domain.ExternalField{Name: parts[0], Type: t}
	if len(parts) == 3 {
		f.ExternalName = parts[2]
	}
	return f, nil
}

func parseOptionFlags(opts []string) (map[string]string, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(opts))
	for _, o := range opts {
		k, v, ok := strings.Cut(o, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid option %q: want key=value", o)
		}
		out[k] = v
	}
	return out, nil
}

func newTablesCreateCmd(client *Client) *cobra.Command {
	var (
		connectorType string
		fieldFlags    []string
		optionFlags   []string
		replace       bool
		ifNotExists   bool
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an external table",
		Example: `  extcat tables create users --type File --option format=csv --option path=/data/users
  extcat tables create kv --type ReplicatedMap --field id:INT:__key --field name:VARCHAR:this`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def := domain.ExternalTableDefinition{Name: args[0], ConnectorType: connectorType}
			for _, s := range fieldFlags {
				f, err := parseFieldFlag(s)
				if err != nil {
					return err
				}
				def.Fields = append(def.Fields, f)
			}
			opts, err := parseOptionFlags(optionFlags)
			if err != nil {
				return err
			}
			def.Options = opts

			created, err := client.CreateTable(cmd.Context(), def, replace, ifNotExists)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(out, map[string]any{"table": def.Name, "created": created})
			}
			if created {
				_, _ = fmt.Fprintf(out, "Table %q created.\n", def.Name)
			} else {
				_, _ = fmt.Fprintf(out, "Table %q already exists, skipped.\n", def.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&connectorType, "type", "t", "", "Connector type (required)")
	cmd.Flags().StringArrayVarP(&fieldFlags, "field", "f", nil, "Column as name:TYPE[:external_name] (repeatable)")
	cmd.Flags().StringArrayVar(&optionFlags, "option", nil, "Connector option as key=value (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace an existing table")
	cmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Do nothing if the table exists")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newTablesDropCmd(client *Client) *cobra.Command {
	var ifExists bool
	cmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop an external table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.RemoveTable(cmd.Context(), args[0], ifExists); err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]any{"table": args[0], "dropped": true})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Table %q dropped.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&ifExists, "if-exists", false, "Do not fail when the table is missing")
	return cmd
}

func newTablesListCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := client.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				if tables == nil {
					tables = []api.TableInfo{}
				}
				return PrintJSON(cmd.OutOrStdout(), tables)
			}
			rows := make([][]string, len(tables))
			for i, t := range tables {
				rows[i] = []string{t.Schema, t.Name, t.Type, strconv.FormatBool(t.Stream), strconv.Itoa(len(t.Columns))}
			}
			PrintTable(cmd.OutOrStdout(), []string{"schema", "name", "type", "stream", "columns"}, rows)
			return nil
		},
	}
}

func newTablesDescribeCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <name>",
		Short: "Show a table's columns and options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := client.GetTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(out, t)
			}
			_, _ = fmt.Fprintf(out, "Table:   %s.%s\n", t.Schema, t.Name)
			_, _ = fmt.Fprintf(out, "Type:    %s\n", t.Type)
			_, _ = fmt.Fprintf(out, "Stream:  %t\n", t.Stream)
			if t.RowCount > 0 {
				_, _ = fmt.Fprintf(out, "Rows:    ~%d\n", t.RowCount)
			}
			if len(t.Options) > 0 {
				_, _ = fmt.Fprintf(out, "Options: %s\n", formatOptions(t.Options))
			}
			_, _ = fmt.Fprintln(out)
			rows := make([][]string, len(t.Columns))
			for i, c := range t.Columns {
				key := ""
				if c.IsKey {
					key = "yes"
				}
				rows[i] = []string{c.Name, c.Type.String(), c.Path, key}
			}
			PrintTable(out, []string{"column", "type", "path", "key"}, rows)
			return nil
		},
	}
}
