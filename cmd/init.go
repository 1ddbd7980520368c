package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabloom-cli/internal/study"
	"github.com/KaramelBytes/tabloom-cli/internal/utils"
)

var (
	initDescription string
	initData        string
	initMeta        string
	initSidecar     string
	initSheet       string
	initCategory    string
	initSubcategory string
)

var initCmd = &cobra.Command{
	Use:   "init <study-name>",
	Short: "Register a survey study",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := study.ValidateName(name); err != nil {
			return err
		}
		if initData == "" {
			return errors.New("--data is required")
		}
		root, err := defaultStudiesDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(root, name)
		if _, err := os.Stat(filepath.Join(dir, study.FileName)); err == nil {
			return fmt.Errorf("study already exists at %s", dir)
		}
		data, err := filepath.Abs(initData)
		if err != nil {
			return err
		}
		s := study.New(name, data, dir)
		s.Description = initDescription
		s.Sheet = initSheet
		s.Category = initCategory
		s.Subcategory = initSubcategory
		if initMeta != "" {
			if s.MetaPath, err = filepath.Abs(initMeta); err != nil {
				return err
			}
		}
		if initSidecar != "" {
			if s.SidecarPath, err = filepath.Abs(initSidecar); err != nil {
				return err
			}
		}
		// Fail early on files the readers cannot load.
		d, err := s.Read()
		if err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Study initialized: %s (%d respondents, %d columns)\n", dir, d.Dataset.Rows(), len(d.Dataset.Columns()))
		return nil
	},
}

func defaultStudiesDir() (string, error) {
	c, err := requireConfig()
	if err != nil {
		return "", err
	}
	dir, err := utils.ExpandHome(c.StudiesDir)
	if err != nil {
		return "", err
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initDescription, "desc", "d", "", "study description")
	initCmd.Flags().StringVar(&initData, "data", "", "respondent data file ("+strings.Join(dataExts, ", ")+")")
	initCmd.Flags().StringVar(&initMeta, "meta", "", "metadata JSON (default <data>.meta.json)")
	initCmd.Flags().StringVar(&initSidecar, "sidecar", "", "sidecar JSON with filters and cross variables")
	initCmd.Flags().StringVar(&initSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	initCmd.Flags().StringVar(&initCategory, "category", "", "catalog category")
	initCmd.Flags().StringVar(&initSubcategory, "subcategory", "", "catalog subcategory")
}

var dataExts = []string{".csv", ".tsv", ".xlsx"}
