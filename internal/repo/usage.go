package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// UsageDelta is the increment applied to one usage bucket.
type UsageDelta struct {
	Successful    int
	Failed        int
	RateLimited   int
	DataRetrieved int
}

// IncrementUsage adds one request plus delta to the (platform, endpoint,
// date, hour) bucket, creating the bucket when absent. It is a single
// INSERT ... ON CONFLICT DO UPDATE so concurrent callers never lose counts.
func IncrementUsage(ctx context.Context, db *gorm.DB, platformID uint, endpoint, date string, hour int, d UsageDelta) error {
	row := models.APIUsage{
		PlatformID:         platformID,
		Endpoint:           endpoint,
		Date:               date,
		Hour:               hour,
		RequestsMade:       1,
		SuccessfulRequests: d.Successful,
		FailedRequests:     d.Failed,
		RateLimited:        d.RateLimited,
		DataRetrieved:      d.DataRetrieved,
	}

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform_id"}, {Name: "endpoint"}, {Name: "date"}, {Name: "hour"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"requests_made":       gorm.Expr("api_usage.requests_made + ?", 1),
			"successful_requests": gorm.Expr("api_usage.successful_requests + ?", d.Successful),
			"failed_requests":     gorm.Expr("api_usage.failed_requests + ?", d.Failed),
			"rate_limited":        gorm.Expr("api_usage.rate_limited + ?", d.RateLimited),
			"data_retrieved":      gorm.Expr("api_usage.data_retrieved + ?", d.DataRetrieved),
		}),
	}).Create(&row).Error
}

// GetUsage returns one bucket or ErrNotFound.
func GetUsage(ctx context.Context, db *gorm.DB, platformID uint, endpoint, date string, hour int) (*models.APIUsage, error) {
	var u models.APIUsage
	err := db.WithContext(ctx).
		Where("platform_id = ? AND endpoint = ? AND date = ? AND hour = ?", platformID, endpoint, date, hour).
		First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ListUsage returns buckets for a platform (0 = all), optionally one date,
// newest first.
func ListUsage(ctx context.Context, db *gorm.DB, platformID uint, date string) ([]models.APIUsage, error) {
	q := db.WithContext(ctx).Model(&models.APIUsage{})
	if platformID != 0 {
		q = q.Where("platform_id = ?", platformID)
	}
	if date != "" {
		q = q.Where("date = ?", date)
	}

	var out []models.APIUsage
	err := q.Order("date DESC").Order("hour DESC").Order("endpoint ASC").Find(&out).Error
	return out, err
}
