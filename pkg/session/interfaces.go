package session

import (
	"context"

	"tagscraper/pkg/models"
)

// Batch is one page of results from the source.
type Batch struct {
	// Posts in source order, duplicates included
	Posts []models.Post
	// Cursor resumes pagination on the next fetch
	Cursor string
	// Extent is the source's scan position. A value that stops
	// advancing across batches means the source is not growing.
	// Zero means the source does not report an extent.
	Extent int64
	// HasMore is false when the source reports its end
	HasMore bool
}

// BatchFetcher retrieves one batch from the source. Implementations
// classify their failures with pkg/errors so the retry policy and the
// session can tell transient from fatal.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, target, cursor string) (*Batch, error)
}

// FetcherFunc adapts a function to the BatchFetcher interface.
type FetcherFunc func(ctx context.Context, target, cursor string) (*Batch, error)

// FetchBatch calls f.
func (f FetcherFunc) FetchBatch(ctx context.Context, target, cursor string) (*Batch, error) {
	return f(ctx, target, cursor)
}
