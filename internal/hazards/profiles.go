package hazards

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/repo"
)

// ProfileInput is the writable part of a user profile.
type ProfileInput struct {
	Role    *string `json:"role" validate:"omitempty,oneof=citizen official analyst"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Address *string `json:"address" validate:"omitempty,max=1000"`
}

// ProfileService manages user profiles.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService creates a profile service on db.
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// Create adds the caller's profile. A caller may only create a citizen
// profile, and only one.
func (s *ProfileService) Create(ctx context.Context, callerID uint, in ProfileInput) (*models.UserProfile, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Role != nil && *in.Role != models.RoleCitizen {
		return nil, ErrForbidden
	}

	p := &models.UserProfile{UserID: callerID, Role: models.RoleCitizen}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if err := repo.CreateProfile(ctx, s.db, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrProfileExists
		}
		return nil, err
	}
	return s.Get(ctx, p.ID)
}

// List returns all profiles.
func (s *ProfileService) List(ctx context.Context, limit, offset int) ([]models.UserProfile, error) {
	return repo.ListProfiles(ctx, s.db, limit, offset)
}

// Get returns one profile.
func (s *ProfileService) Get(ctx context.Context, id uint) (*models.UserProfile, error) {
	p, err := repo.GetProfile(ctx, s.db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

// Role returns the role of userID, citizen when the user has no profile.
func (s *ProfileService) Role(ctx context.Context, userID uint) (string, error) {
	p, err := repo.GetProfileByUser(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.RoleCitizen, nil
		}
		return "", err
	}
	return p.Role, nil
}

// Replace overwrites role, phone and address of profile id. Missing phone
// and address are cleared; a missing role is kept.
func (s *ProfileService) Replace(ctx context.Context, callerID, id uint, in ProfileInput) (*models.UserProfile, error) {
	empty := ""
	if in.Phone == nil {
		in.Phone = &empty
	}
	if in.Address == nil {
		in.Address = &empty
	}
	return s.update(ctx, callerID, id, in)
}

// Patch updates the provided fields of profile id.
func (s *ProfileService) Patch(ctx context.Context, callerID, id uint, in ProfileInput) (*models.UserProfile, error) {
	return s.update(ctx, callerID, id, in)
}

// update applies the fields of in that differ from the stored profile.
// Contact fields belong to the owner; role belongs to officials.
func (s *ProfileService) update(ctx context.Context, callerID, id uint, in ProfileInput) (*models.UserProfile, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Phone != nil && *in.Phone != current.Phone {
		fields["phone"] = *in.Phone
	}
	if in.Address != nil && *in.Address != current.Address {
		fields["address"] = *in.Address
	}
	if len(fields) > 0 && current.UserID != callerID {
		return nil, ErrForbidden
	}

	if in.Role != nil && *in.Role != current.Role {
		role, err := s.Role(ctx, callerID)
		if err != nil {
			return nil, err
		}
		if role != models.RoleOfficial {
			return nil, ErrForbidden
		}
		fields["role"] = *in.Role
	}

	if len(fields) == 0 {
		return current, nil
	}
	if err := repo.UpdateProfileFields(ctx, s.db, id, fields); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"profile_id": id, "user_id": callerID}).Info("Profile updated")
	return s.Get(ctx, id)
}

// Delete removes profile id owned by callerID.
func (s *ProfileService) Delete(ctx context.Context, callerID, id uint) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.UserID != callerID {
		return ErrForbidden
	}
	if err := repo.DeleteProfile(ctx, s.db, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
