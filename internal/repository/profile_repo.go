package repository

import (
	"context"

	"gorm.io/gorm"

	"blood-connect/backend/internal/model"
)

// ProfileRepository read access to the profile directory.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
}

type profileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.WithContext(ctx).Where("profile_id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
