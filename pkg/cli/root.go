package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == outputJSON {
			errObj := map[string]any{"error": err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				errObj["code"] = apiErr.Code
			}
			_ = PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host    string
		output  string
		profile string
	)
	client := NewClient(host)

	rootCmd := &cobra.Command{
		Use:           "extcat",
		Short:         "External table catalog CLI",
		Long:          "Command-line interface for the external table catalog server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig(ConfigPath())
			if err != nil {
				return err
			}
			p := cfg.ActiveProfile(profile)

			// flag > env > profile > default
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("EXTCAT_HOST"); v != "" {
					host = v
				} else if p.Host != "" {
					host = p.Host
				}
			}
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("EXTCAT_OUTPUT"); v != "" {
					output = v
				} else if p.Output != "" {
					output = p.Output
				}
				_ = cmd.Root().PersistentFlags().Set("output", output)
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			client.BaseURL = host
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", defaultOutputFormat(), "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")

	rootCmd.AddCommand(newTablesCmd(client))
	rootCmd.AddCommand(newSelectCmd(client))
	rootCmd.AddCommand(newInsertCmd(client))
	rootCmd.AddCommand(newJobsCmd(client))
	rootCmd.AddCommand(newApplyCmd(client))
	rootCmd.AddCommand(newCompletionCmd())
	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
