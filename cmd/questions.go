package cmd

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var questionsJSON bool

var questionsCmd = &cobra.Command{
	Use:   "questions <study>",
	Short: "List the questions parsed from a study's columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		svc, err := newService(c, nil)
		if err != nil {
			return err
		}
		qs, err := svc.Questions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if questionsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(qs)
		}
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Code", "Kind", "Label", "Waves", "Columns"})
		table.SetAutoWrapText(false)
		for _, q := range qs {
			table.Append([]string{q.Code, q.Kind, q.Label, strings.Join(q.Waves, ","), strconv.Itoa(len(q.Codes))})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)
	questionsCmd.Flags().BoolVar(&questionsJSON, "json", false, "print JSON instead of a table")
}
