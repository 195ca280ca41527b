package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/engine"
	"github.com/envforge/envforge/pkg/naming"
	"github.com/envforge/envforge/pkg/prereq"
)

func newCreateCommand() *cobra.Command {
	var (
		project    string
		onConflict string
		region     string
		skipChecks bool
	)

	cmd := &cobra.Command{
		Use:   "create <feature>",
		Short: "Provision a feature environment",
		Long: `Provision a complete environment for a feature: a compute
instance, a source branch pushed to the project repository, and two
database branches (one for the app, one for its tests).

Provisioning is fail-fast. If any step fails, the remaining steps are
skipped and no local record is written; resources already created
remotely are reported for manual cleanup or a retried run.`,
		Example: `  # Provision an environment for the add-auth feature
  envforge create add-auth --project acme

  # Pick a unique instance name automatically on collision
  envforge create add-auth --project acme --on-conflict suffix`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feature := args[0]

			policy := naming.Policy(onConflict)
			if !naming.ValidPolicy(policy) {
				return fmt.Errorf("invalid --on-conflict policy %q (valid: %s, %s)",
					onConflict, naming.PolicyFail, naming.PolicySuffix)
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if !skipChecks {
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
				if !result.Passed {
					for _, e := range result.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
					}
					return fmt.Errorf("%d prerequisite(s) not met", len(result.Errors))
				}
			}

			svc := engine.NewProvisionService(app.projects, app.envs, app.gw, app.audit, app.tools)
			res, err := svc.Provision(cmd.Context(), engine.ProvisionRequest{
				Project:        project,
				Feature:        feature,
				ConflictPolicy: policy,
				Region:         region,
			})
			if err != nil {
				return reportError(cmd, err)
			}

			rec := res.Record
			fmt.Fprintf(cmd.OutOrStdout(), "Environment %s is ready\n", rec.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "  host:              %s\n", rec.RemoteHost)
			fmt.Fprintf(cmd.OutOrStdout(), "  source branch:     %s\n", rec.SourceBranch)
			fmt.Fprintf(cmd.OutOrStdout(), "  database branches: %v\n", rec.DatabaseBranches)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project the feature belongs to")
	cmd.Flags().StringVar(&onConflict, "on-conflict", string(naming.PolicyFail),
		"instance name collision policy: fail or suffix")
	cmd.Flags().StringVar(&region, "region", "", "override the project's default region")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "skip prerequisite checks")

	cmd.MarkFlagRequired("project")

	return cmd
}

// reportError prints the remediation hint, if any, and passes the error
// up for a non-zero exit.
func reportError(cmd *cobra.Command, err error) error {
	if hint := engine.Hint(err); hint != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "hint: %s\n", hint)
	}
	return err
}
