package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "tagscraper/pkg/errors"
	"tagscraper/pkg/logger"
	"tagscraper/pkg/models"
	"tagscraper/pkg/session"
)

// feedResponse is the wire shape of one feed page.
type feedResponse struct {
	Posts   []models.Post `json:"posts"`
	Cursor  string        `json:"cursor"`
	Extent  int64         `json:"extent"`
	HasMore bool          `json:"has_more"`
}

// Client fetches batches from a feed endpoint. It implements
// session.BatchFetcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	batchSize  int
	logger     logger.Logger
}

// NewClient creates a feed client for baseURL. batchSize is the page
// size requested from the feed.
func NewClient(baseURL string, batchSize int, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		batchSize: batchSize,
		logger:    log,
	}
}

// FetchBatch retrieves one page of posts for a tag.
func (c *Client) FetchBatch(ctx context.Context, target, cursor string) (*session.Batch, error) {
	endpoint := fmt.Sprintf("%s/posts?%s", c.baseURL, url.Values{
		"tag":    {target},
		"cursor": {cursor},
		"limit":  {fmt.Sprintf("%d", c.batchSize)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeUnknown, "failed to build feed request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "feed request failed")
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("feed page fetched", map[string]interface{}{
		"target":   target,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if err := classifyStatus(resp.StatusCode, target); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	var page feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeUnknown, "failed to decode feed response")
	}

	return &session.Batch{
		Posts:   page.Posts,
		Cursor:  page.Cursor,
		Extent:  page.Extent,
		HasMore: page.HasMore,
	}, nil
}

// classifyStatus maps an HTTP status onto the error taxonomy.
func classifyStatus(status int, target string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return errs.New(errs.ErrorTypeThrottled, "feed rate limit hit")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.Newf(errs.ErrorTypeAuth, "feed rejected credentials (status %d)", status)
	case status == http.StatusNotFound:
		return errs.Newf(errs.ErrorTypeNotFound, "tag %q not found", target)
	case status >= 500:
		return errs.Newf(errs.ErrorTypeNetwork, "feed server error (status %d)", status)
	default:
		return errs.Newf(errs.ErrorTypeUnknown, "unexpected feed status %d", status)
	}
}
