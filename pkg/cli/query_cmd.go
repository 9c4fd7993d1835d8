package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"duck-connect/internal/service/query"
)

func newSelectCmd(client *Client) *cobra.Command {
	var req query.SelectRequest
	cmd := &cobra.Command{
		Use:   "select <table>",
		Short: "Scan a table",
		Example: `  extcat select users --columns name --columns "age + 1" --where "age > 30"
  extcat select ticks --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Select(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(out, result)
			}
			rows := make([][]string, len(result.Rows))
			for i, r := range result.Rows {
				rows[i] = make([]string, len(r))
				for j, v := range r {
					rows[i][j] = formatValue(v)
				}
			}
			PrintTable(out, result.Columns, rows)
			_, _ = fmt.Fprintf(out, "(%d rows)\n", result.RowCount)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&req.Columns, "columns", "c", nil, "Projected expression (repeatable, default all columns)")
	cmd.Flags().StringVarP(&req.Where, "where", "w", "", "Filter expression")
	cmd.Flags().IntVarP(&req.Limit, "limit", "l", 0, "Maximum rows (required for streams)")
	return cmd
}

func newInsertCmd(client *Client) *cobra.Command {
	var rowsJSON, file string
	cmd := &cobra.Command{
		Use:   "insert <table>",
		Short: "Insert rows into a table",
		Long:  "Rows are a JSON array of arrays ordered like the table's columns.",
		Example: `  extcat insert kv --rows '[[1, "one"], [2, "two"]]'
  cat rows.json | extcat insert kv --file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readRowsInput(cmd.InOrStdin(), rowsJSON, file)
			if err != nil {
				return err
			}
			rows, err := decodeRows(data)
			if err != nil {
				return err
			}
			n, err := client.Insert(cmd.Context(), args[0], rows)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]any{"table": args[0], "rows_inserted": n})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) inserted into %q.\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&rowsJSON, "rows", "", "Rows as a JSON array of arrays")
	cmd.Flags().StringVar(&file, "file", "", "Read rows from a file ('-' for stdin)")
	cmd.MarkFlagsMutuallyExclusive("rows", "file")
	cmd.MarkFlagsOneRequired("rows", "file")
	return cmd
}

func readRowsInput(stdin io.Reader, rowsJSON, file string) ([]byte, error) {
	switch file {
	case "":
		return []byte(rowsJSON), nil
	case "-":
		return io.ReadAll(stdin)
	default:
		data, err := os.ReadFile(file) //nolint:gosec // user-supplied input file
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		return data, nil
	}
}

// decodeRows keeps numbers as json.Number so large integers and decimals
// reach the server unchanged.
func decodeRows(data []byte) ([][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse rows: want a JSON array of arrays: %w", err)
	}
	return rows, nil
}

func formatOptions(opts map[string]string) string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + opts[k]
	}
	return strings.Join(parts, ", ")
}
