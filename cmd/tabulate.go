package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabloom-cli/internal/compose"
	"github.com/KaramelBytes/tabloom-cli/internal/tabulate"
	"github.com/KaramelBytes/tabloom-cli/internal/utils"
)

var (
	tabQuestions []string
	tabGroups    []string
	tabCross     []string
	tabStats     []string
	tabSort      string
	tabView      string
	tabFormat    string
	tabOutput    string
	tabSheet     string
	tabChart     bool
	tabDecimals  int
)

var tabulateCmd = &cobra.Command{
	Use:   "tabulate <study>",
	Short: "Build banner tables with significance annotations",
	Long: `Build one report for the selected questions by the selected cross breaks.

Questions default to the catalog groups of the study's category (or every parsed
question without a catalog). Cross breaks default to the catalog cross questions
(or every sidecar cross variable). A cross break may also be a raw column code.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if tabFormat == "xlsx" && tabOutput == "" {
			return errors.New("--output is required for xlsx")
		}
		kv, err := newCache(cmd.Context(), c)
		if err != nil {
			return err
		}
		defer kv.Close()
		svc, err := newService(c, kv)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("decimals") {
			svc.Options.Decimals = tabDecimals
		}
		specs, err := questionSpecs(tabQuestions, tabStats, tabSort)
		if err != nil {
			return err
		}
		rep, err := svc.Tabulate(cmd.Context(), tabulate.Request{
			Study:       args[0],
			Questions:   specs,
			Groups:      tabGroups,
			CrossBreaks: tabCross,
			View:        tabView,
		})
		if err != nil {
			return err
		}
		printProblems(cmd.ErrOrStderr(), rep)

		var buf bytes.Buffer
		if err := tabulate.Render(&buf, rep, tabFormat, compose.XLSXOptions{Sheet: tabSheet, Chart: tabChart}); err != nil {
			return err
		}
		if tabOutput == "" {
			_, err := io.Copy(cmd.OutOrStdout(), &buf)
			return err
		}
		if err := utils.SafeWriteFile(tabOutput, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d rows, %d columns)\n", tabOutput, len(rep.Rows), len(rep.Columns))
		return nil
	},
}

// questionSpecs applies the shared --stats and --sort flags to every code.
func questionSpecs(codes, stats []string, sortSpec string) ([]compose.QuestionSpec, error) {
	by, order, _ := strings.Cut(sortSpec, ":")
	switch by {
	case "", "options", "values":
	default:
		return nil, fmt.Errorf("invalid --sort %q (options|values[:asc|desc|original])", sortSpec)
	}
	var out []compose.QuestionSpec
	for _, code := range codes {
		if code = strings.TrimSpace(code); code == "" {
			continue
		}
		out = append(out, compose.QuestionSpec{Code: code, Stats: stats, SortBy: by, SortOrder: order})
	}
	return out, nil
}

func printProblems(w io.Writer, rep *compose.Report) {
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)
	for _, wn := range rep.Warnings {
		warn.Fprintf(w, "⚠ Warning: %s\n", wn.String())
	}
	for _, e := range rep.Errors {
		bad.Fprintf(w, "✗ Skipped %s\n", e.Error())
	}
}

func init() {
	rootCmd.AddCommand(tabulateCmd)
	f := tabulateCmd.Flags()
	f.StringSliceVarP(&tabQuestions, "questions", "q", nil, "question codes (comma separated)")
	f.StringSliceVarP(&tabGroups, "groups", "g", nil, "catalog groups, or sidecar sections without a catalog, when --questions is empty")
	f.StringSliceVarP(&tabCross, "cross", "x", nil, "cross break labels or column codes")
	f.StringSliceVar(&tabStats, "stats", nil, "statistic rows for --questions (mean,std,se,count,answers,percentage)")
	f.StringVar(&tabSort, "sort", "", "row sort for --questions: options|values[:asc|desc|original]")
	f.StringVar(&tabView, "view", "detailed", "detailed|grouped")
	f.StringVarP(&tabFormat, "format", "f", "text", "output format: "+strings.Join(tabulate.Formats, "|"))
	f.StringVarP(&tabOutput, "output", "o", "", "output file (default stdout)")
	f.StringVar(&tabSheet, "sheet", "", "xlsx sheet name")
	f.BoolVar(&tabChart, "chart", false, "add a bar chart of the TOTAL column to xlsx output")
	f.IntVar(&tabDecimals, "decimals", 1, "decimal places (overrides config)")
}
