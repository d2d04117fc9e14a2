package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tagscraper/pkg/breaker"
	"tagscraper/pkg/config"
	errs "tagscraper/pkg/errors"
	"tagscraper/pkg/models"
	"tagscraper/pkg/ratelimit"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	cfg.Retry.JitterFactor = 0
	return cfg
}

func fastLimiter() ratelimit.Limiter {
	return ratelimit.NewTokenBucket(10000, 10000)
}

func testBreaker() *breaker.Breaker {
	return breaker.New(5, time.Minute, nil)
}

func makePosts(start, n int) []models.Post {
	posts := make([]models.Post, 0, n)
	for i := start; i < start+n; i++ {
		posts = append(posts, models.Post{
			ID:       fmt.Sprintf("%d", i),
			Username: "someone",
			Content:  fmt.Sprintf("post %d", i),
		})
	}
	return posts
}

func TestCollectCompletesWhenRequestedReached(t *testing.T) {
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		calls++
		return &Batch{
			Posts:   makePosts(calls*10, 5),
			Cursor:  fmt.Sprintf("c%d", calls),
			HasMore: true,
		}, nil
	})

	s := New(fetcher, fastLimiter(), testBreaker(), testConfig(), nil)
	run, posts, err := s.Collect(context.Background(), "golang", 12)
	if err != nil {
		t.Fatalf("Expected clean completion, got %v", err)
	}

	if run.State != models.StateCompleted {
		t.Errorf("Expected completed, got %s", run.State)
	}
	if run.Accepted < 12 {
		t.Errorf("Expected at least 12 accepted, got %d", run.Accepted)
	}
	if len(posts) != run.Accepted {
		t.Errorf("Expected %d returned posts, got %d", run.Accepted, len(posts))
	}
	if run.Target != "golang" || run.RunID == "" {
		t.Errorf("Expected populated run record, got %+v", run)
	}
	if !run.State.Terminal() {
		t.Error("Expected terminal state")
	}
}

func TestCollectExhaustsWhenSourceRepeats(t *testing.T) {
	// Ten unique posts, then the source serves the same page forever
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		calls++
		return &Batch{Posts: makePosts(0, 10), HasMore: true}, nil
	})

	s := New(fetcher, fastLimiter(), testBreaker(), testConfig(), nil)
	run, posts, err := s.Collect(context.Background(), "golang", 100)
	if err != nil {
		t.Fatalf("Expected clean exhaustion, got %v", err)
	}

	if run.State != models.StateExhausted {
		t.Errorf("Expected exhausted, got %s (%s)", run.State, run.Reason)
	}
	if run.Accepted != 10 {
		t.Errorf("Expected 10 accepted, got %d", run.Accepted)
	}
	if len(posts) != 10 {
		t.Errorf("Expected 10 returned posts, got %d", len(posts))
	}
	// First batch accepts, then 3 all-duplicate batches trip the stall counter
	if calls != 4 {
		t.Errorf("Expected 4 fetches before stall detection, got %d", calls)
	}
	if run.Duplicates != 30 {
		t.Errorf("Expected 30 duplicates, got %d", run.Duplicates)
	}
}

func TestCollectExhaustsWhenExtentStopsGrowing(t *testing.T) {
	// Every batch has one new post, but the extent never advances past
	// the first page, so the flat-extent counter fires
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		calls++
		return &Batch{
			Posts:   makePosts(calls, 1),
			Extent:  1000,
			HasMore: true,
		}, nil
	})

	s := New(fetcher, fastLimiter(), testBreaker(), testConfig(), nil)
	run, _, err := s.Collect(context.Background(), "golang", 100)
	if err != nil {
		t.Fatalf("Expected clean exhaustion, got %v", err)
	}

	if run.State != models.StateExhausted {
		t.Errorf("Expected exhausted, got %s (%s)", run.State, run.Reason)
	}
	// Batch 1 grows the extent, batches 2 through 6 are flat
	if calls != 6 {
		t.Errorf("Expected 6 fetches before flat-extent detection, got %d", calls)
	}
}

func TestCollectExhaustsAtSourceEnd(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		return &Batch{Posts: makePosts(0, 7), HasMore: false}, nil
	})

	s := New(fetcher, fastLimiter(), testBreaker(), testConfig(), nil)
	run, posts, err := s.Collect(context.Background(), "golang", 100)
	if err != nil {
		t.Fatalf("Expected clean exhaustion, got %v", err)
	}

	if run.State != models.StateExhausted {
		t.Errorf("Expected exhausted, got %s", run.State)
	}
	if len(posts) != 7 {
		t.Errorf("Expected 7 posts, got %d", len(posts))
	}
}

func TestCollectAbortsOnFatalErrorKeepingPartialResults(t *testing.T) {
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		calls++
		switch calls {
		case 1:
			return &Batch{Posts: makePosts(0, 15), HasMore: true}, nil
		case 2:
			return &Batch{Posts: makePosts(15, 10), HasMore: true}, nil
		default:
			return nil, errs.New(errs.ErrorTypeAuth, "session invalid")
		}
	})

	s := New(fetcher, fastLimiter(), testBreaker(), testConfig(), nil)
	run, posts, err := s.Collect(context.Background(), "golang", 100)
	if err == nil {
		t.Fatal("Expected abort error")
	}

	if run.State != models.StateAborted {
		t.Errorf("Expected aborted, got %s", run.State)
	}
	if run.Accepted != 25 {
		t.Errorf("Expected 25 accepted before abort, got %d", run.Accepted)
	}
	if len(posts) != 25 {
		t.Errorf("Expected 25 partial posts returned, got %d", len(posts))
	}
	if calls != 3 {
		t.Errorf("Expected fatal error not retried, got %d calls", calls)
	}
}

func TestCollectAbortsWhenRetriesExhausted(t *testing.T) {
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		calls++
		return nil, errs.New(errs.ErrorTypeNetwork, "connection reset")
	})

	s := New(fetcher, fastLimiter(), testBreaker(), testConfig(), nil)
	run, _, err := s.Collect(context.Background(), "golang", 10)
	if err == nil {
		t.Fatal("Expected abort error")
	}

	if run.State != models.StateAborted {
		t.Errorf("Expected aborted, got %s", run.State)
	}
	if run.Reason != "retries exhausted" {
		t.Errorf("Expected retries exhausted reason, got %q", run.Reason)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestCollectAbortsImmediatelyWhenCircuitOpen(t *testing.T) {
	brk := testBreaker()
	for i := 0; i < 5; i++ {
		brk.Call(func() error {
			return errs.New(errs.ErrorTypeNetwork, "down")
		})
	}

	invoked := false
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		invoked = true
		return &Batch{Posts: makePosts(0, 5), HasMore: true}, nil
	})

	s := New(fetcher, fastLimiter(), brk, testConfig(), nil)
	run, _, err := s.Collect(context.Background(), "golang", 10)
	if err == nil {
		t.Fatal("Expected abort error")
	}

	if invoked {
		t.Error("Expected fetcher not invoked while circuit open")
	}
	if run.State != models.StateAborted {
		t.Errorf("Expected aborted, got %s", run.State)
	}
	if run.Reason != "circuit open" {
		t.Errorf("Expected circuit open reason, got %q", run.Reason)
	}
}

func TestCollectAbortsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	fetcher := FetcherFunc(func(fctx context.Context, target, cursor string) (*Batch, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return &Batch{Posts: makePosts(calls*10, 5), HasMore: true}, nil
	})

	s := New(fetcher, fastLimiter(), testBreaker(), testConfig(), nil)
	run, posts, err := s.Collect(ctx, "golang", 1000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	if run.State != models.StateAborted {
		t.Errorf("Expected aborted, got %s", run.State)
	}
	if len(posts) != 10 {
		t.Errorf("Expected 10 partial posts kept, got %d", len(posts))
	}
}

func TestCollectFeedsThrottleSignalsToAdaptiveLimiter(t *testing.T) {
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.AdaptiveConfig{
		InitialRate:       8,
		MinRate:           1,
		MaxRate:           16,
		BackoffFactor:     0.5,
		RecoveryFactor:    1.1,
		RecoveryThreshold: 20,
	})

	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, target, cursor string) (*Batch, error) {
		calls++
		if calls == 1 {
			return nil, errs.New(errs.ErrorTypeThrottled, "rate limited by source")
		}
		return &Batch{Posts: makePosts(0, 5), HasMore: false}, nil
	})

	s := New(fetcher, limiter, testBreaker(), testConfig(), nil)
	run, _, err := s.Collect(context.Background(), "golang", 100)
	if err != nil {
		t.Fatalf("Expected recovery after throttle, got %v", err)
	}

	if run.State != models.StateExhausted {
		t.Errorf("Expected exhausted, got %s", run.State)
	}
	if rate := limiter.CurrentRate(); rate != 4 {
		t.Errorf("Expected rate halved to 4 after throttle, got %f", rate)
	}
}
