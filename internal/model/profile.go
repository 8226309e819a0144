package model

// Profile roles
const (
	RoleHospital = "hospital"
	RoleDonor    = "donor"
)

// Profile is the directory entry for a user (table profiles).
// Owned by the account service; this service only reads it.
type Profile struct {
	ProfileID string `gorm:"type:varchar(64);primaryKey"  json:"profile_id"`
	Role      string `gorm:"type:varchar(20);not null"    json:"role"`
	Name      string `gorm:"type:varchar(200);not null"   json:"name"`
	Email     string `gorm:"type:varchar(255)"            json:"email,omitempty"`
	Phone     string `gorm:"type:varchar(50)"             json:"phone,omitempty"`
	BloodType string `gorm:"type:varchar(3)"              json:"blood_type,omitempty"`
	Address   string `gorm:"type:varchar(300)"            json:"address,omitempty"`
	BaseModel
}

// TableName table name
func (Profile) TableName() string { return "profiles" }

func (p *Profile) IsHospital() bool { return p != nil && p.Role == RoleHospital }

func (p *Profile) IsDonor() bool { return p != nil && p.Role == RoleDonor }
