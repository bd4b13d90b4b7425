// Package usage records outbound platform calls into hourly usage buckets.
package usage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/repo"
	"github.com/oceanwatch/hazard-monitor/internal/sources"
)

// Tracker upserts one usage bucket per observed call.
type Tracker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTracker creates a tracker writing to db.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db, now: time.Now}
}

// Record adds one call to the current UTC hour bucket of (platformID,
// endpoint). Exactly one of successful, rate_limited and failed is
// incremented; items count as retrieved data only on success.
func (t *Tracker) Record(ctx context.Context, platformID uint, endpoint string, items int, outcome sources.Outcome) error {
	now := t.now().UTC()

	var d repo.UsageDelta
	switch outcome {
	case sources.OutcomeSuccess:
		d.Successful = 1
		d.DataRetrieved = items
	case sources.OutcomeRateLimited:
		d.RateLimited = 1
	default:
		d.Failed = 1
	}

	return repo.IncrementUsage(ctx, t.db, platformID, endpoint, now.Format("2006-01-02"), now.Hour(), d)
}

// For returns an observer bound to one platform. Recording errors are
// logged and never reach the caller.
func (t *Tracker) For(platformID uint) sources.Observer {
	return platformObserver{tracker: t, platformID: platformID}
}

type platformObserver struct {
	tracker    *Tracker
	platformID uint
}

func (o platformObserver) Observe(ctx context.Context, endpoint string, items int, outcome sources.Outcome) {
	if err := o.tracker.Record(ctx, o.platformID, endpoint, items, outcome); err != nil {
		logrus.WithFields(logrus.Fields{
			"platform_id": o.platformID,
			"endpoint":    endpoint,
		}).Errorf("Failed to record API usage: %v", err)
	}
}
