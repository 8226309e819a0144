package repository

import "gorm.io/gorm"

// Repository aggregates every repository the service layer depends on.
type Repository struct {
	Profile      ProfileRepository
	BloodRequest BloodRequestRepository
}

// NewRepository builds the gorm-backed repositories.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Profile:      NewProfileRepo(db),
		BloodRequest: NewBloodRequestRepo(db),
	}
}
