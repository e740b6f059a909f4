package models

import "time"

type Role string

const (
	RoleDealer Role = "dealer"
	RoleAdmin  Role = "admin"
)

type DealerStatus string

const (
	DealerStatusPending  DealerStatus = "pending"
	DealerStatusApproved DealerStatus = "approved"
)

// Account is the portal's own user record. ID is always generated by the
// store; ExternalIdentityID links it to the identity provider user.
type Account struct {
	ID                 string       `json:"id"`
	Email              string       `json:"email"`
	DisplayName        string       `json:"displayName,omitempty"`
	BusinessName       string       `json:"businessName,omitempty"`
	Phone              string       `json:"phone,omitempty"`
	WhatsApp           string       `json:"whatsapp,omitempty"`
	Address            string       `json:"address,omitempty"`
	TaxID              string       `json:"taxId,omitempty"`
	Role               Role         `json:"role"`
	DealerStatus       DealerStatus `json:"dealerStatus,omitempty"`
	ExternalIdentityID string       `json:"externalIdentityId,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// ApplyApplication overlays an approved application onto the account.
func (a *Account) ApplyApplication(app *DealerApplication, externalID string) {
	a.Role = RoleDealer
	a.DealerStatus = DealerStatusApproved
	a.BusinessName = app.BusinessName
	a.DisplayName = app.ContactPerson
	a.Phone = app.Phone
	a.Address = app.Address
	a.TaxID = app.TaxID
	a.WhatsApp = app.WhatsApp
	if externalID != "" {
		a.ExternalIdentityID = externalID
	}
}
