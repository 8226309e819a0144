package dto

// ── blood request DTOs ──

// CreateBloodRequestRequest body of POST /blood-requests
type CreateBloodRequestRequest struct {
	BloodType     string `json:"blood_type"     binding:"required,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Units         int    `json:"units"          binding:"required,min=1"`
	Urgency       string `json:"urgency"        binding:"required,oneof=emergency urgent routine"`
	PatientInfo   string `json:"patient_info"   binding:"omitempty,max=2000"`
	ContactPerson string `json:"contact_person" binding:"omitempty,max=200"`
	ContactPhone  string `json:"contact_phone"  binding:"omitempty,max=50"`
	Notes         string `json:"notes"          binding:"omitempty,max=2000"`
}

// EditBloodRequestFields editable, non-status fields (PATCH /blood-requests/:id).
// Enum values are checked by the service so both routes report the same errors.
type EditBloodRequestFields struct {
	BloodType     *string `json:"blood_type"`
	Units         *int    `json:"units"`
	Urgency       *string `json:"urgency"`
	PatientInfo   *string `json:"patient_info"   binding:"omitempty,max=2000"`
	ContactPerson *string `json:"contact_person" binding:"omitempty,max=200"`
	ContactPhone  *string `json:"contact_phone"  binding:"omitempty,max=50"`
	Notes         *string `json:"notes"          binding:"omitempty,max=2000"`
}

// UpdateBloodRequestRequest partial patch of PUT /blood-requests/:id.
// Status is written as given unless engine.permissive_status_patch is off.
type UpdateBloodRequestRequest struct {
	EditBloodRequestFields
	Status *string `json:"status"`
}

// RespondRequest body of POST /blood-requests/:id/respond
type RespondRequest struct {
	Distance     *float64 `json:"distance"     binding:"omitempty,gte=0"`
	Availability *string  `json:"availability" binding:"omitempty,max=200"`
}

// RemoveRequestQuery query of DELETE /blood-requests/:id
type RemoveRequestQuery struct {
	Count *int `form:"count"`
}

// BloodRequestResponse a request with its responses
type BloodRequestResponse struct {
	ID            string                  `json:"id"`
	HospitalID    string                  `json:"hospital_id"`
	HospitalName  string                  `json:"hospital_name"`
	BloodType     string                  `json:"blood_type"`
	Units         int                     `json:"units"`
	Urgency       string                  `json:"urgency"`
	PatientInfo   string                  `json:"patient_info"`
	ContactPerson string                  `json:"contact_person"`
	ContactPhone  string                  `json:"contact_phone"`
	Notes         string                  `json:"notes"`
	Timestamp     string                  `json:"timestamp"`
	Status        string                  `json:"status"`
	Responses     []DonorResponseResponse `json:"responses"`
	Version       int                     `json:"version"`
}

// DonorResponseResponse a donor's response
type DonorResponseResponse struct {
	ID             string  `json:"id"`
	DonorID        string  `json:"donor_id"`
	DonorName      string  `json:"donor_name"`
	DonorPhone     string  `json:"donor_phone"`
	DonorBloodType string  `json:"donor_blood_type"`
	Distance       float64 `json:"distance"`
	Availability   string  `json:"availability"`
	Timestamp      string  `json:"timestamp"`
	Status         string  `json:"status"`
}

// RemoveRequestResponse result of DELETE /blood-requests/:id.
// Request is set only when responses were trimmed and the request survived.
type RemoveRequestResponse struct {
	Deleted          bool                  `json:"deleted"`
	RemovedResponses int                   `json:"removed_responses"`
	Request          *BloodRequestResponse `json:"request,omitempty"`
}

// IndexRepairReport outcome of an index reconciliation pass
type IndexRepairReport struct {
	DanglingHospitalEntries int `json:"dangling_hospital_entries"`
	DanglingActiveEntries   int `json:"dangling_active_entries"`
	StaleActiveEntries      int `json:"stale_active_entries"`
	MissingHospitalEntries  int `json:"missing_hospital_entries"`
	MissingActiveEntries    int `json:"missing_active_entries"`
}
