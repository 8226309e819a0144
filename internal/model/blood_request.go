package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Blood types accepted on requests and donor profiles.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// Urgency levels
const (
	UrgencyEmergency = "emergency"
	UrgencyUrgent    = "urgent"
	UrgencyRoutine   = "routine"
)

// Request statuses. fulfilled and cancelled are terminal.
const (
	RequestStatusActive    = "active"
	RequestStatusFulfilled = "fulfilled"
	RequestStatusCancelled = "cancelled"
)

// Response statuses. Declined responses are removed, not flagged.
const (
	ResponseStatusPending  = "pending"
	ResponseStatusAccepted = "accepted"
)

func IsValidBloodType(bt string) bool {
	for _, t := range BloodTypes {
		if t == bt {
			return true
		}
	}
	return false
}

func IsValidUrgency(u string) bool {
	switch u {
	case UrgencyEmergency, UrgencyUrgent, UrgencyRoutine:
		return true
	}
	return false
}

func IsValidRequestStatus(s string) bool {
	switch s {
	case RequestStatusActive, RequestStatusFulfilled, RequestStatusCancelled:
		return true
	}
	return false
}

// BloodRequest a hospital's solicitation for blood (table blood_requests).
// Position orders the indices newest first.
type BloodRequest struct {
	BloodRequestID string         `gorm:"type:varchar(64);primaryKey"          json:"blood_request_id"`
	HospitalID     string         `gorm:"type:varchar(64);not null;index"      json:"hospital_id"`
	HospitalName   string         `gorm:"type:varchar(200);not null"           json:"hospital_name"`
	BloodType      string         `gorm:"type:varchar(3);not null"             json:"blood_type"`
	Units          int            `gorm:"not null"                             json:"units"`
	Urgency        string         `gorm:"type:varchar(20);not null"            json:"urgency"`
	PatientInfo    string         `gorm:"type:text"                            json:"patient_info"`
	ContactPerson  string         `gorm:"type:varchar(200)"                    json:"contact_person"`
	ContactPhone   string         `gorm:"type:varchar(50)"                     json:"contact_phone"`
	Notes          string         `gorm:"type:text"                            json:"notes"`
	RequestedAt    time.Time      `gorm:"not null"                             json:"timestamp"`
	Status         string         `gorm:"type:varchar(20);not null;index"      json:"status"`
	Position       int64          `gorm:"not null"                             json:"-"`
	Responses      DonorResponses `gorm:"not null"                             json:"responses"`
	VersionedModel
}

// TableName table name
func (BloodRequest) TableName() string { return "blood_requests" }

// FindResponse returns the index of the response with the given id, or -1.
func (r *BloodRequest) FindResponse(responseID string) int {
	for i := range r.Responses {
		if r.Responses[i].ResponseID == responseID {
			return i
		}
	}
	return -1
}

// HasResponseFrom reports whether donorID already has a response queued.
func (r *BloodRequest) HasResponseFrom(donorID string) bool {
	for i := range r.Responses {
		if r.Responses[i].DonorID == donorID {
			return true
		}
	}
	return false
}

// AcceptedCount number of accepted responses
func (r *BloodRequest) AcceptedCount() int {
	n := 0
	for i := range r.Responses {
		if r.Responses[i].Status == ResponseStatusAccepted {
			n++
		}
	}
	return n
}

// DonorResponse is a donor's offer, embedded in its request.
// Donor fields are a snapshot taken at response time.
type DonorResponse struct {
	ResponseID     string    `json:"id"`
	DonorID        string    `json:"donor_id"`
	DonorName      string    `json:"donor_name"`
	DonorPhone     string    `json:"donor_phone"`
	DonorBloodType string    `json:"donor_blood_type"`
	Distance       float64   `json:"distance"`
	Availability   string    `json:"availability"`
	RespondedAt    time.Time `json:"timestamp"`
	Status         string    `json:"status"`
}

// ── DonorResponses JSON column ──

// DonorResponses is stored as a JSON array (jsonb on PostgreSQL, text on sqlite).
type DonorResponses []DonorResponse

// Scan decodes the stored JSON array.
func (d *DonorResponses) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = DonorResponses{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("DonorResponses.Scan: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*d = DonorResponses{}
		return nil
	}
	var out DonorResponses
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("DonorResponses.Scan: %w", err)
	}
	if out == nil {
		out = DonorResponses{}
	}
	*d = out
	return nil
}

// Value encodes the sequence; nil is stored as an empty array.
func (d DonorResponses) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]DonorResponse(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDBDataType picks the column type per dialect.
func (DonorResponses) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// Clone returns an independent copy so callers can mutate without aliasing.
func (d DonorResponses) Clone() DonorResponses {
	out := make(DonorResponses, len(d))
	copy(out, d)
	return out
}

// ── indices ──

// HospitalRequestIndex per-hospital request list (table hospital_request_index).
type HospitalRequestIndex struct {
	HospitalID     string `gorm:"type:varchar(64);primaryKey"`
	BloodRequestID string `gorm:"type:varchar(64);primaryKey"`
	Position       int64  `gorm:"not null;index"`
}

// TableName table name
func (HospitalRequestIndex) TableName() string { return "hospital_request_index" }

// ActiveRequestIndex global list of active requests (table active_request_index).
type ActiveRequestIndex struct {
	BloodRequestID string `gorm:"type:varchar(64);primaryKey"`
	Position       int64  `gorm:"not null;index"`
}

// TableName table name
func (ActiveRequestIndex) TableName() string { return "active_request_index" }
