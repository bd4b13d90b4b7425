package hazards

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/repo"
)

// Coordinates are stored as decimal(9,6).
const coordinateScale = 6

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// ReportInput is the writable part of a hazard report. Owner, status and
// creation time are not part of it and cannot be set by clients.
type ReportInput struct {
	Description *string          `json:"description" validate:"omitempty,min=1,max=5000"`
	Latitude    *decimal.Decimal `json:"latitude"`
	Longitude   *decimal.Decimal `json:"longitude"`
	MediaURL    *string          `json:"media_url" validate:"omitempty,url,max=500"`
}

// ReportService manages hazard reports.
type ReportService struct {
	db *gorm.DB
}

// NewReportService creates a report service on db.
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// Create stores a report owned by callerID with status unverified.
func (s *ReportService) Create(ctx context.Context, callerID uint, in ReportInput) (*models.HazardReport, error) {
	if err := in.check(true); err != nil {
		return nil, err
	}

	report := &models.HazardReport{
		UserID:      callerID,
		Description: strings.TrimSpace(*in.Description),
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		MediaURL:    mediaURL(in.MediaURL),
		Status:      models.StatusUnverified,
	}
	if err := repo.CreateReport(ctx, s.db, report); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"report_id": report.ID, "user_id": callerID}).Info("Hazard report created")
	return report, nil
}

// List returns reports newest first. Every authenticated caller sees all
// reports.
func (s *ReportService) List(ctx context.Context, f repo.ReportFilter) ([]models.HazardReport, error) {
	return repo.ListReports(ctx, s.db, f)
}

// Get returns one report.
func (s *ReportService) Get(ctx context.Context, id uint) (*models.HazardReport, error) {
	r, err := repo.GetReport(ctx, s.db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return r, err
}

// Replace overwrites description, location and media of a report owned by
// callerID. Description and both coordinates are required.
func (s *ReportService) Replace(ctx context.Context, callerID, id uint, in ReportInput) (*models.HazardReport, error) {
	return s.update(ctx, callerID, id, in, true)
}

// Patch updates the provided fields of a report owned by callerID.
func (s *ReportService) Patch(ctx context.Context, callerID, id uint, in ReportInput) (*models.HazardReport, error) {
	return s.update(ctx, callerID, id, in, false)
}

func (s *ReportService) update(ctx context.Context, callerID, id uint, in ReportInput, full bool) (*models.HazardReport, error) {
	current, err := s.owned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if err := in.check(full); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Latitude != nil {
		fields["latitude"] = *in.Latitude
	}
	if in.Longitude != nil {
		fields["longitude"] = *in.Longitude
	}
	if in.MediaURL != nil || full {
		fields["media_url"] = mediaURL(in.MediaURL)
	}
	if len(fields) == 0 {
		return current, nil
	}

	if err := repo.UpdateReportFields(ctx, s.db, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a report owned by callerID.
func (s *ReportService) Delete(ctx context.Context, callerID, id uint) error {
	if _, err := s.owned(ctx, callerID, id); err != nil {
		return err
	}
	if err := repo.DeleteReport(ctx, s.db, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// owned loads report id and checks that callerID owns it.
func (s *ReportService) owned(ctx context.Context, callerID, id uint) (*models.HazardReport, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.UserID != callerID {
		logrus.WithFields(logrus.Fields{"report_id": id, "user_id": callerID}).Warn("Rejected change to a report owned by another user")
		return nil, ErrForbidden
	}
	return report, nil
}

// check validates in; full requires description and both coordinates.
func (in ReportInput) check(full bool) error {
	if full {
		switch {
		case in.Description == nil || strings.TrimSpace(*in.Description) == "":
			return invalid("description is required")
		case in.Latitude == nil:
			return invalid("latitude is required")
		case in.Longitude == nil:
			return invalid("longitude is required")
		}
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return invalid("description may not be blank")
	}
	if in.MediaURL != nil && *in.MediaURL == "" {
		in.MediaURL = nil
	}
	if err := validateStruct(in); err != nil {
		return err
	}
	if err := checkCoordinate("latitude", in.Latitude, maxLatitude); err != nil {
		return err
	}
	return checkCoordinate("longitude", in.Longitude, maxLongitude)
}

func checkCoordinate(name string, v *decimal.Decimal, limit decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if v.Abs().GreaterThan(limit) {
		return invalid("%s must be within [-%s, %s]", name, limit, limit)
	}
	if !v.Equal(v.Round(coordinateScale)) {
		return invalid("%s must have at most %d decimal places", name, coordinateScale)
	}
	return nil
}

// mediaURL maps an empty URL to none.
func mediaURL(v *string) *string {
	if v == nil {
		return nil
	}
	u := strings.TrimSpace(*v)
	if u == "" {
		return nil
	}
	return &u
}
