package commands

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/stores"
)

func newProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage project records",
		Long: `Manage the long-lived project records that feature environments
are provisioned against. A project names the source repository, the
hosting app, and the database-branching project.`,
	}

	cmd.AddCommand(newProjectAddCommand())
	cmd.AddCommand(newProjectListCommand())
	cmd.AddCommand(newProjectRemoveCommand())

	return cmd
}

func newProjectAddCommand() *cobra.Command {
	var (
		repoURL    string
		owner      string
		repo       string
		hostingURL string
		appID      string
		dbProject  string
		region     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a project",
		Example: `  envforge project add acme \
    --repo-url git@github.com:acme/acme.git \
    --owner acme --repo acme \
    --hosting-url https://acme.fly.dev --app-id acme-app \
    --db-project proj-ref-1 --region fra`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.projects.Get(name); err == nil {
				return fmt.Errorf("project %q already exists", name)
			} else if !errors.Is(err, stores.ErrNotFound) {
				return err
			}

			rec := stores.ProjectRecord{
				Name:      name,
				CreatedAt: time.Now(),
				SourceControl: stores.SourceControl{
					RepoURL: repoURL,
					Owner:   owner,
					Repo:    repo,
				},
				Hosting: stores.HostingTarget{
					URL:   hostingURL,
					AppID: appID,
				},
				Database: stores.DatabaseProject{
					ProjectRef: dbProject,
					Region:     region,
				},
			}
			if err := app.projects.Upsert(rec); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Project %s registered\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoURL, "repo-url", "", "git clone URL of the project repository")
	cmd.Flags().StringVar(&owner, "owner", "", "source-control owner")
	cmd.Flags().StringVar(&repo, "repo", "", "source-control repository name")
	cmd.Flags().StringVar(&hostingURL, "hosting-url", "", "production hosting URL")
	cmd.Flags().StringVar(&appID, "app-id", "", "hosting application id")
	cmd.Flags().StringVar(&dbProject, "db-project", "", "database-branching project reference")
	cmd.Flags().StringVar(&region, "region", "", "default region for new instances")

	cmd.MarkFlagRequired("repo-url")
	cmd.MarkFlagRequired("app-id")
	cmd.MarkFlagRequired("db-project")

	return cmd
}

func newProjectListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			projects, err := app.projects.List()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects registered.")
				return nil
			}

			sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREPOSITORY\tAPP\tDB PROJECT\tREGION")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.Name, p.SourceControl.RepoURL, p.Hosting.AppID,
					p.Database.ProjectRef, p.Database.Region)
			}
			return w.Flush()
		},
	}
}

func newProjectRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a project record",
		Long: `Remove a project record. Only the local record is deleted; the
repository, hosting app, and database project stay untouched. Projects
with active environments cannot be removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			envs, err := app.envs.List()
			if err != nil {
				return err
			}
			for _, e := range envs {
				if e.Project == name {
					return fmt.Errorf("project %q still has environment %s; clean it first", name, e.Name)
				}
			}

			if err := app.projects.Remove(name); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Project %s removed\n", name)
			return nil
		},
	}
}
