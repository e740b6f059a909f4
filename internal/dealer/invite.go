package dealer

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"dealer-portal/internal/common/auth"
	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/validation"
	"dealer-portal/internal/models"
	"dealer-portal/internal/notification"
	"dealer-portal/internal/store"
)

// Invite creates an identity and an approved dealer account for someone
// who never applied. If the account cannot be written the identity is
// deleted again.
func (s *Service) Invite(ctx context.Context, callerEmail string, req InviteRequest) (result *InviteResult, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "invite", start, err) }()

	if err := s.AuthorizeAdmin(ctx, callerEmail); err != nil {
		return nil, err
	}

	req.Email = validation.NormalizeEmail(req.Email)
	if !validation.ValidateEmail(req.Email) {
		return nil, errors.NewInvalidError("A valid email is required", req.Email)
	}
	if strings.TrimSpace(req.BusinessName) == "" || strings.TrimSpace(req.ContactPerson) == "" {
		return nil, errors.NewInvalidError("businessName and contactPerson are required", "")
	}

	log := s.logger.WithFields(map[string]interface{}{"email": req.Email, "inviter": callerEmail})

	_, err = s.identity.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, errors.NewInvalidError(msgIdentityExists, req.Email)
	case !errors.HasCode(err, errors.ErrCodeUserNotFound):
		return nil, identityError(err)
	}

	firstName, lastName := splitName(req.ContactPerson)
	created, err := s.identity.CreateUser(ctx, &auth.User{
		Email:           req.Email,
		Username:        req.Email,
		FirstName:       firstName,
		LastName:        lastName,
		Enabled:         true,
		RequiredActions: []string{"VERIFY_EMAIL", "UPDATE_PASSWORD"},
	})
	if errors.HasCode(err, errors.ErrCodeUserExists) {
		log.Info("identity created concurrently", nil)
		return nil, errors.NewInvalidError(msgIdentityExists, req.Email)
	}
	if err != nil {
		return nil, identityError(err)
	}

	account := &models.Account{
		Email:              req.Email,
		DisplayName:        req.ContactPerson,
		BusinessName:       req.BusinessName,
		Phone:              req.Phone,
		WhatsApp:           req.WhatsApp,
		Address:            req.Address,
		TaxID:              req.TaxID,
		Role:               models.RoleDealer,
		DealerStatus:       models.DealerStatusApproved,
		ExternalIdentityID: created.ID,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		s.rollbackIdentity(ctx, created.ID, log)
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, errors.NewInvalidError(msgAccountExists, req.Email)
		}
		log.Error("invite account insert failed", map[string]interface{}{"error": err})
		return nil, storeError(err, msgNotFound)
	}

	log.Info("dealer invited", map[string]interface{}{
		"accountId":  account.ID,
		"identityId": created.ID,
	})

	s.roles.Invalidate(ctx, req.Email)
	s.notify(ctx, notification.Message{
		Kind: notification.KindDealerInvited,
		Recipient: notification.Recipient{
			Name:     req.ContactPerson,
			Email:    req.Email,
			Phone:    req.Phone,
			WhatsApp: req.WhatsApp,
		},
		Data: map[string]interface{}{
			"businessName":  req.BusinessName,
			"contactPerson": req.ContactPerson,
			"email":         req.Email,
		},
	})

	return &InviteResult{Success: true, DealerID: account.ID, ClerkUserID: created.ID}, nil
}

// rollbackIdentity deletes an identity created earlier in a failed invite.
// A failed delete leaves an orphan identity, which is logged for cleanup.
func (s *Service) rollbackIdentity(ctx context.Context, identityID string, log logger.Logger) {
	if err := s.identity.DeleteUser(context.WithoutCancel(ctx), identityID); err != nil {
		log.Error("failed to delete identity after invite failure", map[string]interface{}{
			"identityId": identityID,
			"error":      err,
		})
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
