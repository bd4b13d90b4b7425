package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// PostExists reports whether (platformID, postID) has already been stored.
func PostExists(ctx context.Context, db *gorm.DB, platformID uint, postID string) (bool, error) {
	var p models.SocialMediaPost
	err := db.WithContext(ctx).
		Select("id").
		Where("platform_id = ? AND post_id = ?", platformID, postID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreatePost inserts post in one statement. The (platform_id, post_id)
// unique index backs the caller's existence check; a violation is returned
// as ErrDuplicate.
func CreatePost(ctx context.Context, db *gorm.DB, post *models.SocialMediaPost) error {
	if err := db.WithContext(ctx).Omit("Platform").Create(post).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PostFilter narrows ListPosts. Zero values mean "no filter".
type PostFilter struct {
	PlatformID   uint
	DisasterOnly bool
	Limit        int
	Offset       int
}

// ListPosts returns posts newest first.
func ListPosts(ctx context.Context, db *gorm.DB, f PostFilter) ([]models.SocialMediaPost, error) {
	q := db.WithContext(ctx).Model(&models.SocialMediaPost{})
	if f.PlatformID != 0 {
		q = q.Where("platform_id = ?", f.PlatformID)
	}
	if f.DisasterOnly {
		q = q.Where("is_disaster_related = ?", true)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.SocialMediaPost
	err := q.Order("posted_at DESC").Order("id DESC").Find(&out).Error
	return out, err
}

// CountPosts returns the number of stored posts for a platform.
func CountPosts(ctx context.Context, db *gorm.DB, platformID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.SocialMediaPost{}).Where("platform_id = ?", platformID).Count(&n).Error
	return n, err
}
