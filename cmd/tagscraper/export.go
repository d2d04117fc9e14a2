package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tagscraper/pkg/logger"
	"tagscraper/pkg/store"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <directory>",
	Short: "Copy the archive files to another directory",
	Long: `Copy posts.json and metadata.json from the archive into the given
directory, creating it if needed. The archive itself is not modified.`,
	Example: `  tagscraper export ./backup-2026-08-25`,
	Args:    cobra.ExactArgs(1),
	RunE:    runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.DataDir, logger.GetLogger())
	if err != nil {
		return err
	}

	if err := st.Export(args[0]); err != nil {
		return err
	}

	fmt.Printf("Archive exported to %s\n", args[0])
	return nil
}
