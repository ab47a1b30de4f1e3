package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/spf13/cobra"
)

func newWorkflowCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect stored workflow runs",
	}
	cmd.AddCommand(newWorkflowShowCmd(g))
	cmd.AddCommand(newWorkflowListCmd(g))
	return cmd
}

func newWorkflowShowCmd(g *globalOpts) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show one workflow record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := workflow.NewStore(a.db).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return printRecord(out, rec, resolveFormat(format, out))
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatAuto, "output format (auto, json, table)")
	return cmd
}

func newWorkflowListCmd(g *globalOpts) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent workflow runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			recs, err := workflow.NewStore(a.db).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No workflows recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCONFIDENCE\tCREATED\tQUERY")
			for _, rec := range recs {
				fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\t%s\n",
					rec.ID, statusColor(rec.Status).Sprint(rec.Status), rec.FinalConfidence,
					rec.CreatedAt.Format("2006-01-02 15:04"), truncate(rec.Query, 50))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")
	return cmd
}
