package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tagscraper/pkg/breaker"
	"tagscraper/pkg/collector"
	"tagscraper/pkg/config"
	errs "tagscraper/pkg/errors"
	"tagscraper/pkg/logger"
	"tagscraper/pkg/models"
	"tagscraper/pkg/ratelimit"
	"tagscraper/pkg/retry"
)

// Session drives acquisition for one target at a time. The limiter and
// breaker may be shared across sessions hitting the same source; the
// collector is fresh for every Collect call.
type Session struct {
	fetcher BatchFetcher
	limiter ratelimit.Limiter
	breaker *breaker.Breaker
	retry   config.RetryConfig
	collect config.CollectConfig
	logger  logger.Logger

	now func() time.Time
}

// New creates a session around one fetcher. The limiter is consulted
// before every batch; if it also implements ratelimit.FeedbackLimiter
// the session reports throttle and success signals to it.
func New(fetcher BatchFetcher, limiter ratelimit.Limiter, brk *breaker.Breaker, cfg *config.Config, log logger.Logger) *Session {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Session{
		fetcher: fetcher,
		limiter: limiter,
		breaker: brk,
		retry:   cfg.Retry,
		collect: cfg.Collect,
		logger:  log,
		now:     time.Now,
	}
}

// Collect fetches batches for target until a terminal condition is
// reached and returns the finalized run record together with the
// accepted posts. On an aborted run the partial results gathered so
// far are still returned, along with the error that ended the run.
func (s *Session) Collect(ctx context.Context, target string, requested int) (*models.TargetRun, []models.Post, error) {
	if requested <= 0 {
		requested = s.collect.DefaultCount
	}

	run := &models.TargetRun{
		RunID:     uuid.NewString(),
		Target:    target,
		Requested: requested,
		State:     models.StateRunning,
		StartedAt: s.now(),
	}
	col := collector.New()

	log := s.logger.WithFields(map[string]interface{}{
		"run_id": run.RunID,
		"target": target,
	})
	log.InfoWithFields("starting acquisition", map[string]interface{}{
		"requested": requested,
	})

	var (
		cursor         string
		noNewStreak    int
		noGrowthStreak int
		lastExtent     int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return s.finalize(run, col, models.StateAborted, "cancelled", log), col.Posts(), err
		}

		if err := s.limiter.Acquire(ctx); err != nil {
			return s.finalize(run, col, models.StateAborted, "cancelled while rate limited", log), col.Posts(), err
		}

		batch, err := s.fetchBatch(ctx, target, cursor)
		if err != nil {
			reason := abortReason(err)
			log.WithError(err).Error("acquisition aborted")
			return s.finalize(run, col, models.StateAborted, reason, log), col.Posts(), err
		}

		if fb, ok := s.limiter.(ratelimit.FeedbackLimiter); ok {
			fb.OnSuccess()
		}

		newInBatch := 0
		for _, p := range batch.Posts {
			if p.CollectedAt.IsZero() {
				p.CollectedAt = s.now()
			}
			if col.Add(p) {
				newInBatch++
			}
		}
		run.Collected += len(batch.Posts)
		cursor = batch.Cursor

		if newInBatch == 0 {
			noNewStreak++
		} else {
			noNewStreak = 0
		}

		// Extent zero means the source does not report one; the
		// growth counter only applies when it does.
		if batch.Extent > 0 {
			if batch.Extent > lastExtent {
				noGrowthStreak = 0
				lastExtent = batch.Extent
			} else {
				noGrowthStreak++
			}
		}

		accepted := col.Len()
		log.DebugWithFields("batch processed", map[string]interface{}{
			"batch_size":       len(batch.Posts),
			"new_in_batch":     newInBatch,
			"accepted":         accepted,
			"no_new_streak":    noNewStreak,
			"no_growth_streak": noGrowthStreak,
		})

		switch {
		case accepted >= requested:
			return s.finalize(run, col, models.StateCompleted, "requested count reached", log), col.Posts(), nil
		case noNewStreak >= s.collect.MaxStalledBatches:
			return s.finalize(run, col, models.StateExhausted,
				fmt.Sprintf("no new posts in %d consecutive batches", noNewStreak), log), col.Posts(), nil
		case noGrowthStreak >= s.collect.MaxFlatBatches:
			return s.finalize(run, col, models.StateExhausted,
				fmt.Sprintf("source extent flat for %d consecutive batches", noGrowthStreak), log), col.Posts(), nil
		case !batch.HasMore:
			return s.finalize(run, col, models.StateExhausted, "source reported end of results", log), col.Posts(), nil
		}
	}
}

// fetchBatch runs one fetch through the breaker and the retry policy.
// Throttled failures observed during retries feed back into an
// adaptive limiter immediately, before the retry delay elapses.
func (s *Session) fetchBatch(ctx context.Context, target, cursor string) (*Batch, error) {
	retryCfg := &retry.Config{
		MaxAttempts: s.retry.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    s.retry.BaseDelay,
			MaxDelay:     s.retry.MaxDelay,
			Multiplier:   s.retry.Multiplier,
			JitterFactor: s.retry.JitterFactor,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  s.logger,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			var classified *errs.Error
			if errors.As(err, &classified) && classified.Type == errs.ErrorTypeThrottled {
				if fb, ok := s.limiter.(ratelimit.FeedbackLimiter); ok {
					fb.OnThrottle()
				}
			}
		},
	}

	var batch *Batch
	err := s.breaker.Call(func() error {
		var ferr error
		batch, ferr = retry.DoWithResult(func() (*Batch, error) {
			return s.fetcher.FetchBatch(ctx, target, cursor)
		}, retryCfg)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, errs.New(errs.ErrorTypeUnknown, "fetcher returned no batch")
	}
	return batch, nil
}

func (s *Session) finalize(run *models.TargetRun, col *collector.Collector, state models.SessionState, reason string, log logger.Logger) *models.TargetRun {
	stats := col.Stats()
	run.Accepted = stats.Accepted
	run.Duplicates = stats.Duplicates
	run.State = state
	run.Reason = reason
	run.EndedAt = s.now()

	log.InfoWithFields("acquisition finished", map[string]interface{}{
		"state":      string(state),
		"reason":     reason,
		"accepted":   run.Accepted,
		"duplicates": run.Duplicates,
		"collected":  run.Collected,
		"duration":   run.EndedAt.Sub(run.StartedAt).String(),
	})
	return run
}

// abortReason maps a terminal fetch error to a run reason.
func abortReason(err error) string {
	var classified *errs.Error
	if errors.As(err, &classified) {
		switch {
		case classified.Type == errs.ErrorTypeCircuitOpen:
			return "circuit open"
		case errs.IsFatal(classified.Type):
			return fmt.Sprintf("fatal source error: %s", classified.Message)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "retries exhausted"
}
