package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// CreateUser inserts u. A taken username is returned as ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *models.User) error {
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUser returns the user with the given id.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByUsername returns the user with the given username.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*models.User, error) {
	var u models.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// CreateProfile inserts p. A second profile for the same user is
// ErrDuplicate.
func CreateProfile(ctx context.Context, db *gorm.DB, p *models.UserProfile) error {
	if err := db.WithContext(ctx).Omit("User").Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetProfile returns a profile with its user loaded.
func GetProfile(ctx context.Context, db *gorm.DB, id uint) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := db.WithContext(ctx).Preload("User").First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetProfileByUser returns the profile owned by userID.
func GetProfileByUser(ctx context.Context, db *gorm.DB, userID uint) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListProfiles returns all profiles ordered by id.
func ListProfiles(ctx context.Context, db *gorm.DB, limit, offset int) ([]models.UserProfile, error) {
	q := db.WithContext(ctx).Preload("User").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []models.UserProfile
	err := q.Find(&out).Error
	return out, err
}

// UpdateProfileFields writes the given columns of profile id.
func UpdateProfileFields(ctx context.Context, db *gorm.DB, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&models.UserProfile{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfile removes profile id.
func DeleteProfile(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&models.UserProfile{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
