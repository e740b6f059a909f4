package dealer

import "dealer-portal/internal/models"

const (
	msgAlreadyProcessed  = "Application already processed"
	msgNotFound          = "Application not found"
	msgIdentityMissing   = "User account not found for this email. Please ask the applicant to sign up first."
	msgIdentityExists    = "A user with this email already exists"
	msgAccountExists     = "An account already exists for this email"
	msgIdentityLinked    = "This user is already linked to another account"
	msgPendingExists     = "A pending application already exists for this email"
	msgApproved          = "Dealer approved successfully"
	msgRejected          = "Dealer application rejected"
	defaultListLimit     = 50
	maxListLimit         = 200
	accountSavepointName = "account_insert"
)

// DealerInfo summarises the approved dealer for the admin UI.
type DealerInfo struct {
	Email         string `json:"email"`
	BusinessName  string `json:"businessName"`
	ContactPerson string `json:"contactPerson"`
	Phone         string `json:"phone"`
	WhatsApp      string `json:"whatsapp"`
}

type ApproveResult struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	DealerID   string     `json:"dealerId"`
	DealerInfo DealerInfo `json:"dealerInfo"`
}

type RejectResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type InviteRequest struct {
	Email         string `json:"email"`
	BusinessName  string `json:"businessName"`
	ContactPerson string `json:"contactPerson"`
	Phone         string `json:"phone"`
	WhatsApp      string `json:"whatsapp"`
	Address       string `json:"address"`
	TaxID         string `json:"taxId"`
	BusinessType  string `json:"businessType"`
	Message       string `json:"message"`
}

// InviteResult carries the identity provider user id as clerkUserId, the
// name the admin UI already reads.
type InviteResult struct {
	Success     bool   `json:"success"`
	DealerID    string `json:"dealerId"`
	ClerkUserID string `json:"clerkUserId"`
}

type SubmitRequest struct {
	BusinessName  string `json:"businessName"`
	ContactPerson string `json:"contactPerson"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	WhatsApp      string `json:"whatsapp"`
	Address       string `json:"address"`
	TaxID         string `json:"taxId"`
	BusinessType  string `json:"businessType"`
	Message       string `json:"message"`
}

type SubmitResult struct {
	Success       bool                     `json:"success"`
	ApplicationID string                   `json:"applicationId"`
	Status        models.ApplicationStatus `json:"status"`
}

type ListResult struct {
	Applications []models.DealerApplication `json:"applications"`
	Limit        int                      `json:"limit"`
	Offset       int                      `json:"offset"`
}

// Identity provider event types
const (
	EventUserCreated = "user.created"
)

type IdentityEvent struct {
	Type string            `json:"type"`
	User IdentityEventUser `json:"user"`
}

type IdentityEventUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Identity event outcomes
const (
	ActionIgnored   = "ignored"
	ActionCreated   = "created"
	ActionLinked    = "linked"
	ActionUnchanged = "unchanged"
)

type IdentityEventResult struct {
	Received  bool   `json:"received"`
	Action    string `json:"action"`
	AccountID string `json:"accountId,omitempty"`
}
