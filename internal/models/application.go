package models

import "time"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is a known application status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

// DealerApplication is a request to become a dealer. Only pending
// applications may transition, and only to approved or rejected.
type DealerApplication struct {
	ID              string            `json:"id"`
	BusinessName    string            `json:"businessName"`
	ContactPerson   string            `json:"contactPerson"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone,omitempty"`
	WhatsApp        string            `json:"whatsapp,omitempty"`
	Address         string            `json:"address,omitempty"`
	TaxID           string            `json:"taxId,omitempty"`
	BusinessType    string            `json:"businessType,omitempty"`
	Message         string            `json:"message,omitempty"`
	Status          ApplicationStatus `json:"status"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	ReviewedBy      string            `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// IsPending reports whether the application can still be approved or rejected.
func (a *DealerApplication) IsPending() bool {
	return a.Status == ApplicationPending
}
