package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tagscraper/pkg/logger"
	"tagscraper/pkg/store"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the local archive",
	Long: `Show archive totals and a per-hashtag breakdown: unique posts
contributed, number of runs, and when each tag was last collected.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.DataDir, logger.GetLogger())
	if err != nil {
		return err
	}

	sum, err := st.Summarize()
	if err != nil {
		return err
	}

	fmt.Printf("Archive: %s\n", cfg.Store.DataDir)
	fmt.Printf("  posts:    %d\n", sum.TotalPosts)
	fmt.Printf("  hashtags: %d\n", sum.TargetCount)
	fmt.Printf("  runs:     %d\n", sum.SessionRuns)
	if !sum.LastUpdated.IsZero() {
		fmt.Printf("  updated:  %s\n", sum.LastUpdated.Format("2006-01-02 15:04:05"))
	}

	if sum.TargetCount == 0 {
		fmt.Println("\nNo hashtags collected yet.")
		return nil
	}

	fmt.Println("\nPer hashtag:")
	for _, name := range sum.TargetNames() {
		meta := sum.Targets[name]
		fmt.Printf("  #%-20s %6d unique  %3d runs  last %s\n",
			name, meta.UniquePosts, meta.Runs,
			meta.LastCollected.Format("2006-01-02 15:04"))
	}
	return nil
}
