package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// EnsurePlatform returns the platform named name, creating it with the given
// endpoint and rate limit when absent. Existing rows are returned unchanged.
func EnsurePlatform(ctx context.Context, db *gorm.DB, name, endpoint string, rateLimit int) (*models.SocialMediaPlatform, error) {
	var p models.SocialMediaPlatform
	res := db.WithContext(ctx).
		Where(models.SocialMediaPlatform{Name: name}).
		Attrs(models.SocialMediaPlatform{APIEndpoint: endpoint, IsActive: true, RateLimit: rateLimit}).
		FirstOrCreate(&p)
	if res.Error != nil {
		// Lost a create race with another process: read the winner.
		if isUniqueViolation(res.Error) {
			if err := db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err == nil {
				return &p, nil
			}
		}
		return nil, fmt.Errorf("ensure platform %s: %w", name, res.Error)
	}
	return &p, nil
}

// ListPlatforms returns all known platforms ordered by name.
func ListPlatforms(ctx context.Context, db *gorm.DB) ([]models.SocialMediaPlatform, error) {
	var out []models.SocialMediaPlatform
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// GetPlatformByName looks a platform up case-insensitively.
func GetPlatformByName(ctx context.Context, db *gorm.DB, name string) (*models.SocialMediaPlatform, error) {
	var p models.SocialMediaPlatform
	if err := db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
