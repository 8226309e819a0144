package model

import "time"

// BaseModel audit columns shared by every table.
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// VersionedModel adds the optimistic-lock revision. Writers must match the
// version they read; the store bumps it on every successful write.
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// Tables lists every model whose schema the service owns (sqlite AutoMigrate).
func Tables() []interface{} {
	return []interface{}{
		&Profile{},
		&BloodRequest{},
		&HospitalRequestIndex{},
		&ActiveRequestIndex{},
	}
}
