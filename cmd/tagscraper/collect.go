package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tagscraper/internal/runner"
	"tagscraper/pkg/breaker"
	"tagscraper/pkg/config"
	"tagscraper/pkg/logger"
	"tagscraper/pkg/ratelimit"
	"tagscraper/pkg/source"
	"tagscraper/pkg/store"
)

var (
	// Collect command flags
	sourceURL  string
	count      int
	batchSize  int
	concurrent int
	budget     time.Duration
	rateLimit  float64
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect <hashtag>...",
	Short: "Collect posts for one or more hashtags into the local archive",
	Long: `Collect posts for the given hashtags from a feed endpoint.

Each hashtag runs as its own acquisition session. Sessions share one
rate limiter and one circuit breaker, so pressure from the feed slows
every tag down together. Posts already present in the archive are
skipped; re-running the same tag only stores what is new.`,
	Example: `  # Collect up to 300 posts for one tag
  tagscraper collect golang --source https://feed.example.com

  # Several tags, two at a time, 500 posts each
  tagscraper collect golang rust zig --source https://feed.example.com --count 500 --concurrent 2

  # Cap each session at ten minutes
  tagscraper collect golang --source https://feed.example.com --budget 10m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&sourceURL, "source", "", "feed endpoint base URL (required)")
	collectCmd.Flags().IntVar(&count, "count", 0, "posts to collect per hashtag (default from config)")
	collectCmd.Flags().IntVar(&batchSize, "batch-size", 50, "posts requested per feed page")
	collectCmd.Flags().IntVar(&concurrent, "concurrent", 0, "hashtags collected in parallel")
	collectCmd.Flags().DurationVar(&budget, "budget", 0, "wall-clock budget per hashtag (0 = unlimited)")
	collectCmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "feed requests per second")
	collectCmd.MarkFlagRequired("source")
}

func runCollect(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if count > 0 {
		flags["count"] = count
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if budget > 0 {
		flags["budget"] = budget
	}
	if rateLimit > 0 {
		flags["rate-limit"] = rateLimit
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	st, err := store.Open(cfg.Store.DataDir, log)
	if err != nil {
		return err
	}

	limiter := buildLimiter(cfg)
	brk := breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout, log)
	fetcher := source.NewClient(sourceURL, batchSize, 30*time.Second, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(fetcher, limiter, brk, st, cfg, log)
	reports, err := r.Run(ctx, args, cfg.Collect.DefaultCount)
	if err != nil {
		return err
	}

	failed := 0
	for _, rep := range reports {
		printReport(rep)
		if rep.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d hashtags did not finish cleanly", failed, len(reports))
	}
	return nil
}

func buildLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.RateLimit.Adaptive {
		return ratelimit.NewAdaptiveLimiter(ratelimit.AdaptiveConfig{
			InitialRate:       cfg.RateLimit.RequestsPerSecond,
			MinRate:           cfg.RateLimit.MinRate,
			MaxRate:           cfg.RateLimit.MaxRate,
			BackoffFactor:     cfg.RateLimit.BackoffFactor,
			RecoveryFactor:    cfg.RateLimit.RecoveryFactor,
			RecoveryThreshold: cfg.RateLimit.RecoveryThreshold,
		})
	}
	return ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize)
}

func printReport(rep runner.TargetReport) {
	fmt.Printf("\n#%s\n", rep.Target)
	if rep.Run != nil {
		fmt.Printf("  state:      %s (%s)\n", rep.Run.State, rep.Run.Reason)
		fmt.Printf("  collected:  %d seen, %d unique, %d duplicates\n",
			rep.Run.Collected, rep.Run.Accepted, rep.Run.Duplicates)
		fmt.Printf("  duration:   %s\n", rep.Run.EndedAt.Sub(rep.Run.StartedAt).Round(time.Millisecond))
	}
	if rep.Merge != nil {
		fmt.Printf("  archived:   %d new posts (archive now %d)\n",
			rep.Merge.Accepted, rep.Merge.TotalAfter)
	}
	if rep.Err != nil {
		fmt.Printf("  error:      %v\n", rep.Err)
	}
}
