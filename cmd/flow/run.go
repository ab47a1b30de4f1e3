package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/KramerO/ollama-flow-sub002/internal/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	formatAuto  = "auto"
	formatJSON  = "json"
	formatTable = "table"
)

func newRunCmd(g *globalOpts) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Run one workflow and print the result",
		Long: "Runs research, fact-check and analysis drones against the query and prints\n" +
			"the scored record. Output is a table on a terminal and JSON otherwise.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			coord, err := a.coordinator()
			if err != nil {
				return err
			}
			if err := coord.Register(cmd.Context()); err != nil {
				return err
			}

			rec := coord.ProcessWorkflow(cmd.Context(), strings.Join(args, " "))
			out := cmd.OutOrStdout()
			if err := printRecord(out, rec, resolveFormat(format, out)); err != nil {
				return err
			}
			if rec.Status == workflow.StatusFailed {
				return fmt.Errorf("workflow %s failed: %s", rec.ID, rec.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatAuto, "output format (auto, json, table)")
	return cmd
}

// resolveFormat turns "auto" into table for an interactive stdout and JSON
// for everything else.
func resolveFormat(format string, out io.Writer) string {
	if format != formatAuto {
		return format
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return formatTable
	}
	return formatJSON
}

func printRecord(out io.Writer, rec *workflow.Record, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case formatTable:
		printRecordTable(out, rec)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printRecordTable(out io.Writer, rec *workflow.Record) {
	fmt.Fprintf(out, "Workflow %s\n", rec.ID)
	fmt.Fprintf(out, "  Query:      %s\n", rec.Query)
	fmt.Fprintf(out, "  Status:     %s\n", statusColor(rec.Status).Sprint(rec.Status))
	fmt.Fprintf(out, "  Confidence: %.3f\n", rec.FinalConfidence)
	if rec.Error != "" {
		fmt.Fprintf(out, "  Error:      %s\n", rec.Error)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nPHASE\tDRONE\tDETAIL\tSCORE")
	for _, r := range rec.Research {
		fmt.Fprintf(w, "research\t%s\t%s\t%s\n", r.DroneID, r.Angle, fmtScore(r.Confidence))
	}
	for _, fc := range rec.FactCheck {
		verdict := "rejected"
		if fc.ValidationPassed {
			verdict = "passed"
		}
		fmt.Fprintf(w, "fact_check\t%s\t%s (%s)\t%s\n", fc.DroneID, verdict, fc.ResearchDroneID, fmtScore(fc.Validation.OverallScore))
	}
	for _, an := range rec.Analysis {
		fmt.Fprintf(w, "analysis\t%s\t%s\t%s\n", an.DroneID, truncate(an.Analysis.Summary, 48), fmtScore(an.FinalConfidence))
	}
	w.Flush()
}

func statusColor(s workflow.Status) *color.Color {
	switch s {
	case workflow.StatusCompleted:
		return color.New(color.FgGreen)
	case workflow.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func fmtScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
