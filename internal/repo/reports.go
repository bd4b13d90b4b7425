package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// CreateReport inserts r and loads its owner.
func CreateReport(ctx context.Context, db *gorm.DB, r *models.HazardReport) error {
	if err := db.WithContext(ctx).Omit("User").Create(r).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).First(&r.User, r.UserID).Error
}

// GetReport returns report id with its owner loaded.
func GetReport(ctx context.Context, db *gorm.DB, id uint) (*models.HazardReport, error) {
	var r models.HazardReport
	if err := db.WithContext(ctx).Preload("User").First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// ReportFilter narrows ListReports. Zero values mean "no filter".
type ReportFilter struct {
	UserID uint
	Status string
	Limit  int
	Offset int
}

// ListReports returns reports newest first.
func ListReports(ctx context.Context, db *gorm.DB, f ReportFilter) ([]models.HazardReport, error) {
	q := db.WithContext(ctx).Preload("User")
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.HazardReport
	err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, err
}

// UpdateReportFields writes the given columns of report id.
func UpdateReportFields(ctx context.Context, db *gorm.DB, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&models.HazardReport{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReport removes report id.
func DeleteReport(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&models.HazardReport{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
