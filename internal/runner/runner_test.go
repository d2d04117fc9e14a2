package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tagscraper/pkg/breaker"
	"tagscraper/pkg/config"
	errs "tagscraper/pkg/errors"
	"tagscraper/pkg/models"
	"tagscraper/pkg/ratelimit"
	"tagscraper/pkg/session"
	"tagscraper/pkg/store"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	cfg.Collect.ConcurrentTargets = 2
	return cfg
}

func testDeps(t *testing.T) (ratelimit.Limiter, *breaker.Breaker, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return ratelimit.NewTokenBucket(10000, 10000), breaker.New(5, time.Minute, nil), st
}

// targetFetcher serves a fixed set of posts per target, one page each
type targetFetcher struct {
	mu    sync.Mutex
	pages map[string][]models.Post
	fail  map[string]error
}

func (f *targetFetcher) FetchBatch(ctx context.Context, target, cursor string) (*session.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[target]; err != nil {
		return nil, err
	}
	return &session.Batch{Posts: f.pages[target], HasMore: false}, nil
}

func postsFor(target string, n int) []models.Post {
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, models.Post{
			ID:      fmt.Sprintf("%s-%d", target, i),
			Content: fmt.Sprintf("%s post %d", target, i),
		})
	}
	return posts
}

func TestRunMergesAllTargets(t *testing.T) {
	limiter, brk, st := testDeps(t)
	fetcher := &targetFetcher{
		pages: map[string][]models.Post{
			"golang": postsFor("golang", 10),
			"rust":   postsFor("rust", 7),
			"zig":    postsFor("zig", 3),
		},
	}

	r := New(fetcher, limiter, brk, st, testConfig(), nil)
	reports, err := r.Run(context.Background(), []string{"golang", "rust", "zig"}, 100)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(reports) != 3 {
		t.Fatalf("Expected 3 reports, got %d", len(reports))
	}
	for i, want := range []string{"golang", "rust", "zig"} {
		if reports[i].Target != want {
			t.Errorf("Report %d: expected target %s, got %s", i, want, reports[i].Target)
		}
		if reports[i].Err != nil {
			t.Errorf("Target %s: unexpected error %v", want, reports[i].Err)
		}
		if reports[i].Run.State != models.StateExhausted {
			t.Errorf("Target %s: expected exhausted, got %s", want, reports[i].Run.State)
		}
	}

	sum, err := st.Summarize()
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.TotalPosts != 20 {
		t.Errorf("Expected 20 posts in store, got %d", sum.TotalPosts)
	}
	if sum.Targets["rust"].UniquePosts != 7 {
		t.Errorf("Expected rust contribution 7, got %d", sum.Targets["rust"].UniquePosts)
	}
}

func TestRunFailingTargetDoesNotStopOthers(t *testing.T) {
	limiter, brk, st := testDeps(t)
	fetcher := &targetFetcher{
		pages: map[string][]models.Post{
			"golang": postsFor("golang", 5),
			"rust":   postsFor("rust", 5),
		},
		fail: map[string]error{
			"broken": errs.New(errs.ErrorTypeNotFound, "no such tag"),
		},
	}

	r := New(fetcher, limiter, brk, st, testConfig(), nil)
	reports, err := r.Run(context.Background(), []string{"golang", "broken", "rust"}, 100)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if reports[1].Err == nil {
		t.Error("Expected error for broken target")
	}
	if reports[1].Run.State != models.StateAborted {
		t.Errorf("Expected broken target aborted, got %s", reports[1].Run.State)
	}
	if reports[0].Err != nil || reports[2].Err != nil {
		t.Error("Expected healthy targets to succeed alongside the broken one")
	}

	sum, err := st.Summarize()
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.TotalPosts != 10 {
		t.Errorf("Expected 10 posts from healthy targets, got %d", sum.TotalPosts)
	}
}

func TestRunOverlappingTargetsShareGlobalIdentity(t *testing.T) {
	limiter, brk, st := testDeps(t)
	shared := postsFor("shared", 10)
	fetcher := &targetFetcher{
		pages: map[string][]models.Post{
			"first":  shared,
			"second": shared,
		},
	}

	cfg := testConfig()
	cfg.Collect.ConcurrentTargets = 1 // deterministic merge order
	r := New(fetcher, limiter, brk, st, cfg, nil)
	reports, err := r.Run(context.Background(), []string{"first", "second"}, 100)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if reports[0].Merge.Accepted != 10 {
		t.Errorf("Expected first target to contribute 10, got %d", reports[0].Merge.Accepted)
	}
	if reports[1].Merge.Accepted != 0 {
		t.Errorf("Expected second target to contribute 0, got %d", reports[1].Merge.Accepted)
	}
	if reports[1].Merge.Duplicates != 10 {
		t.Errorf("Expected 10 duplicates for second target, got %d", reports[1].Merge.Duplicates)
	}
}

func TestRunSessionBudgetCancelsLongTarget(t *testing.T) {
	limiter, brk, st := testDeps(t)

	// An endless source of fresh posts that never exhausts
	calls := 0
	fetcher := session.FetcherFunc(func(ctx context.Context, target, cursor string) (*session.Batch, error) {
		calls++
		time.Sleep(5 * time.Millisecond)
		return &session.Batch{Posts: postsFor(fmt.Sprintf("page%d", calls), 2), HasMore: true}, nil
	})

	cfg := testConfig()
	cfg.Collect.SessionBudget = 25 * time.Millisecond
	r := New(fetcher, limiter, brk, st, cfg, nil)
	reports, err := r.Run(context.Background(), []string{"endless"}, 1000000)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rep := reports[0]
	if rep.Run.State != models.StateAborted {
		t.Errorf("Expected budget to abort the run, got %s", rep.Run.State)
	}
	if rep.Merge == nil || rep.Merge.Accepted == 0 {
		t.Error("Expected partial results merged despite budget abort")
	}
}
