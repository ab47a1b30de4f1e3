package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatusCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded state of every drone",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			agents, err := drone.NewRegistry(a.db).List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No drones registered. Start them with 'flow serve' or 'flow run'.")
				return nil
			}

			active := color.New(color.FgGreen).SprintFunc()
			idle := color.New(color.FgHiBlack).SprintFunc()

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROLE\tSTATE\tTASK\tDONE\tUPDATED")
			for _, ag := range agents {
				state := idle("inactive")
				if ag.Active {
					state = active("active")
				}
				task := ag.CurrentTask
				if task == "" {
					task = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					ag.ID, ag.Role, state, truncate(task, 40), ag.CompletedTasks,
					ag.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			w.Flush()
			return nil
		},
	}
}
