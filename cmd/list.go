package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabloom-cli/internal/study"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered studies",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := defaultStudiesDir()
		if err != nil {
			return err
		}
		all, err := study.List(root)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintln(out, "(no studies)")
			return nil
		}
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Name", "Category", "Subcategory", "Data", "Updated"})
		for _, s := range all {
			table.Append([]string{s.Name, s.Category, s.Subcategory, s.DataPath, s.UpdatedAt.Format("2006-01-02 15:04")})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
