package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active feature environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			envs, err := app.envs.List()
			if err != nil {
				return err
			}

			if project != "" {
				filtered := envs[:0]
				for _, e := range envs {
					if e.Project == project {
						filtered = append(filtered, e)
					}
				}
				envs = filtered
			}

			if len(envs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active environments.")
				return nil
			}

			sort.Slice(envs, func(i, j int) bool { return envs[i].Name < envs[j].Name })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROJECT\tFEATURE\tHOST\tCREATED")
			for _, e := range envs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Name, e.Project, e.Feature, e.RemoteHost,
					e.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "only show environments of this project")

	return cmd
}
