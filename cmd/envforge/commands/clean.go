package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/engine"
)

func newCleanCommand() *cobra.Command {
	var (
		project string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "clean <feature>",
		Short: "Tear down a feature environment",
		Long: `Tear down the environment of a feature: delete its database
branches, destroy its compute instance, and remove the local record.

Teardown is best-effort. A resource that fails to delete is reported
with the manual command to finish the job, and the remaining resources
are still processed. The local record is removed either way so a stale
entry never blocks a later create. The project repository and hosting
target are never touched.`,
		Example: `  # Tear down with confirmation
  envforge clean add-auth --project acme

  # Skip the confirmation prompt
  envforge clean add-auth --project acme --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feature := args[0]

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			confirm := func(prompt string) (bool, error) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return false, err
				}
				answer := strings.ToLower(strings.TrimSpace(line))
				return answer == "y" || answer == "yes", nil
			}

			svc := engine.NewTeardownService(app.projects, app.envs, app.gw, app.audit, app.tools, confirm)
			summary, err := svc.Teardown(cmd.Context(), engine.TeardownRequest{
				Project: project,
				Feature: feature,
				Force:   force,
			})
			if err != nil {
				// A declined confirmation is a clean abort, not a failure.
				if engine.IsCancelled(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
				return reportError(cmd, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project the feature belongs to")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")

	cmd.MarkFlagRequired("project")

	return cmd
}
