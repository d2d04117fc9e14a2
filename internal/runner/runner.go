package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tagscraper/pkg/breaker"
	"tagscraper/pkg/config"
	"tagscraper/pkg/logger"
	"tagscraper/pkg/models"
	"tagscraper/pkg/ratelimit"
	"tagscraper/pkg/session"
	"tagscraper/pkg/store"
)

// TargetReport is the outcome for one target: the finalized run, the
// merge result if posts reached the store, and any error that ended
// the run early.
type TargetReport struct {
	Target string
	Run    *models.TargetRun
	Merge  *store.MergeResult
	Err    error
}

// Runner drives acquisition across multiple targets. All targets
// share one rate limiter and one circuit breaker because they hit the
// same source; merges serialize through the store's own lock.
type Runner struct {
	fetcher session.BatchFetcher
	limiter ratelimit.Limiter
	breaker *breaker.Breaker
	store   *store.Store
	cfg     *config.Config
	logger  logger.Logger
}

// New creates a runner over one fetcher and one store.
func New(fetcher session.BatchFetcher, limiter ratelimit.Limiter, brk *breaker.Breaker, st *store.Store, cfg *config.Config, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Runner{
		fetcher: fetcher,
		limiter: limiter,
		breaker: brk,
		store:   st,
		cfg:     cfg,
		logger:  log,
	}
}

// Run collects each target and merges its results into the store. A
// failing target does not stop the others; its report carries the
// error. Reports come back in the same order as targets.
func (r *Runner) Run(ctx context.Context, targets []string, requested int) ([]TargetReport, error) {
	if requested <= 0 {
		requested = r.cfg.Collect.DefaultCount
	}

	r.logger.InfoWithFields("starting collection run", map[string]interface{}{
		"targets":    len(targets),
		"requested":  requested,
		"concurrent": r.cfg.Collect.ConcurrentTargets,
	})

	reports := make([]TargetReport, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Collect.ConcurrentTargets)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			reports[i] = r.runTarget(gctx, target, requested)
			return nil
		})
	}

	// Workers never return errors into the group; per-target failures
	// live in the reports
	if err := g.Wait(); err != nil {
		return reports, err
	}

	succeeded := 0
	for _, rep := range reports {
		if rep.Err == nil {
			succeeded++
		}
	}
	r.logger.InfoWithFields("collection run finished", map[string]interface{}{
		"targets":   len(targets),
		"succeeded": succeeded,
	})
	return reports, ctx.Err()
}

func (r *Runner) runTarget(ctx context.Context, target string, requested int) TargetReport {
	report := TargetReport{Target: target}

	tctx := ctx
	if budget := r.cfg.Collect.SessionBudget; budget > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	sess := session.New(r.fetcher, r.limiter, r.breaker, r.cfg, r.logger)
	run, posts, err := sess.Collect(tctx, target, requested)
	report.Run = run
	report.Err = err

	// Aborted runs still merge whatever they gathered
	if len(posts) > 0 {
		merge, mergeErr := r.store.Merge(target, posts, requested)
		report.Merge = merge
		if mergeErr != nil {
			r.logger.WithError(mergeErr).ErrorWithFields("merge failed", map[string]interface{}{
				"target": target,
			})
			if report.Err == nil {
				report.Err = mergeErr
			}
		}
	}

	return report
}
