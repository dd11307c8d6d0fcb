package domain

import "time"

// BloodRequest emergency broadcast (table blood_requests).
// Requests never expire; they disappear only when their creator cancels them.
type BloodRequest struct {
	ID          string     `json:"id" db:"id"`
	PatientName string     `json:"patientName" db:"patient_name"`
	BloodGroup  BloodGroup `json:"bloodGroup" db:"blood_group"`
	Location
	Address       string    `json:"location" db:"address"` // hospital or area
	Notes         string    `json:"notes,omitempty" db:"notes"`
	Timestamp     time.Time `json:"timestamp" db:"created_at"`
	ContactName   string    `json:"contactName" db:"contact_name"`
	ContactMobile string    `json:"contactMobile" db:"contact_mobile"`
	CreatedBy     string    `json:"createdBy,omitempty" db:"created_by"`
}

// OwnedBy reports whether who created r. Records written before CreatedBy existed
// fall back to the contact mobile.
func (r *BloodRequest) OwnedBy(who *Identity) bool {
	if who == nil {
		return false
	}
	if r.CreatedBy != "" {
		return r.CreatedBy == who.ID
	}
	return r.ContactMobile != "" && r.ContactMobile == who.Mobile
}
