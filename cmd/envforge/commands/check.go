package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/prereq"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the tool's prerequisites",
		Long: `Verify that every external CLI is installed and the
source-control host is authenticated. All failures are reported in one
pass so the remediation list is complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			checker := prereq.NewChecker(app.gw)
			result := checker.Check(cmd.Context(), prereq.Config{
				Tools: []string{
					app.cfg.Tools.Compute,
					app.cfg.Tools.Database,
					app.cfg.Tools.SourceControl,
					app.cfg.Tools.Git,
				},
				SourceControlCLI: app.cfg.Tools.SourceControl,
			})

			for _, w := range result.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			if !result.Passed {
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
				}
				return fmt.Errorf("%d prerequisite(s) not met", len(result.Errors))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "All prerequisites met.")
			return nil
		},
	}

	return cmd
}
