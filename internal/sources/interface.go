package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oceanwatch/hazard-monitor/internal/normalize"
)

var (
	// ErrRateLimited is returned when the platform answers 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrDisabled is returned by Fetch on a source without credentials.
	ErrDisabled = errors.New("source disabled")
)

// APIError is a non-200, non-429 platform response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// Outcome classifies one outbound call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// Observer is told about every outbound call attempt.
type Observer interface {
	Observe(ctx context.Context, endpoint string, items int, outcome Outcome)
}

// NopObserver discards observations.
type NopObserver struct{}

func (NopObserver) Observe(context.Context, string, int, Outcome) {}

// Author is the account that published an item.
type Author struct {
	Username    string
	DisplayName string
	Verified    bool // verified or business account
	Followers   int
}

// Metrics are the engagement counters of an item. Reach is the
// platform's audience figure (reach, else impressions) when it has one.
type Metrics struct {
	Likes    int
	Shares   int
	Comments int
	Views    int
	Reach    int
}

// Item is one candidate post parsed out of a platform response.
type Item struct {
	PostID     string
	Text       string
	Language   string
	PostedAt   time.Time
	Author     Author
	Metrics    Metrics
	Entities   *normalize.Entities // nil for free-text platforms
	Geo        *normalize.Geo
	MediaURLs  []string
	MediaTypes []string
	Raw        json.RawMessage
}

// Audience is the author's follower count when the platform reports one,
// otherwise the item's reach.
func (it Item) Audience() int {
	if it.Author.Followers > 0 {
		return it.Author.Followers
	}
	return it.Metrics.Reach
}

// Engagement is likes + shares + comments.
func (it Item) Engagement() int {
	return it.Metrics.Likes + it.Metrics.Shares + it.Metrics.Comments
}

// Source is a platform that can be searched one unit (keyword or account)
// at a time.
type Source interface {
	GetName() string
	IsEnabled() bool
	Fetch(ctx context.Context, unit string, limit int, obs Observer) ([]Item, error)
}

// Enricher fills in details that cost extra calls per item. Ingestors call
// it only for new items that passed the disaster gate. Failures leave the
// item as it was.
type Enricher interface {
	Enrich(ctx context.Context, item *Item, obs Observer)
}
