package collector

import (
	"sync"

	"tagscraper/pkg/models"
)

// Stats summarizes a collector's intake counters.
type Stats struct {
	// Accepted is the number of unique posts kept
	Accepted int
	// Duplicates is the number of posts rejected as already seen
	Duplicates int
	// Total is every post offered, accepted or not
	Total int
	// DuplicateRate is Duplicates / Total, 0 when nothing was offered
	DuplicateRate float64
}

// Collector deduplicates posts by ID and keeps them in first-seen order.
// Safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	posts      []models.Post
	duplicates int
	seeded     int
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{
		seen: make(map[string]struct{}),
	}
}

// Add offers a post to the collector. It returns true if the post was
// new and accepted, false if its ID was already seen. Posts without an
// ID are rejected as duplicates since they cannot be deduplicated.
func (c *Collector) Add(post models.Post) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if post.ID == "" {
		c.duplicates++
		return false
	}
	if _, ok := c.seen[post.ID]; ok {
		c.duplicates++
		return false
	}

	c.seen[post.ID] = struct{}{}
	c.posts = append(c.posts, post)
	return true
}

// Seed marks IDs as already seen without storing posts or touching the
// counters. Used to preload the archive from a previous run so known
// posts count as duplicates, not new acceptances.
func (c *Collector) Seed(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := c.seen[id]; !ok {
			c.seen[id] = struct{}{}
			c.seeded++
		}
	}
}

// Seen reports whether an ID has been accepted or seeded.
func (c *Collector) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[id]
	return ok
}

// Posts returns a copy of the accepted posts in first-seen order.
// Seeded IDs have no post to return.
func (c *Collector) Posts() []models.Post {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Post, len(c.posts))
	copy(out, c.posts)
	return out
}

// Len returns the number of accepted posts.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.posts)
}

// Stats returns the intake counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	accepted := len(c.posts)
	total := accepted + c.duplicates
	s := Stats{
		Accepted:   accepted,
		Duplicates: c.duplicates,
		Total:      total,
	}
	if total > 0 {
		s.DuplicateRate = float64(c.duplicates) / float64(total)
	}
	return s
}
