package dealer

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/validation"
	"dealer-portal/internal/models"
	"dealer-portal/internal/store"
)

// HandleIdentityEvent processes identity provider events. A user.created
// event gives the new user a pending dealer account, which approval later
// promotes. Existing accounts only get their identity link filled in.
func (s *Service) HandleIdentityEvent(ctx context.Context, evt IdentityEvent) (result *IdentityEventResult, err error) {
	if evt.Type != EventUserCreated {
		s.logger.Debug("identity event ignored", map[string]interface{}{"type": evt.Type})
		return &IdentityEventResult{Received: true, Action: ActionIgnored}, nil
	}

	start := time.Now()
	defer func() { s.record(ctx, "identity_event", start, err) }()

	user := evt.User
	if user.ID == "" {
		return nil, errors.NewInvalidError("user.id is required", "")
	}
	if user.Email == "" {
		fetched, err := s.identity.GetUser(ctx, user.ID)
		if err != nil {
			return nil, identityError(err)
		}
		user.Email = fetched.Email
		user.FirstName, user.LastName = fetched.FirstName, fetched.LastName
	}
	email := validation.NormalizeEmail(user.Email)
	if email == "" {
		return nil, errors.NewInvalidError("user has no email", user.ID)
	}

	accounts := s.store.Accounts()

	existing, err := accounts.GetByEmail(ctx, email)
	if stderrors.Is(err, store.ErrNotFound) {
		account := &models.Account{
			Email:              email,
			DisplayName:        strings.TrimSpace(user.FirstName + " " + user.LastName),
			Role:               models.RoleDealer,
			DealerStatus:       models.DealerStatusPending,
			ExternalIdentityID: user.ID,
		}
		err = accounts.Create(ctx, account)
		if err == nil {
			s.logger.Info("pending dealer account created", map[string]interface{}{
				"accountId":  account.ID,
				"identityId": user.ID,
			})
			return &IdentityEventResult{Received: true, Action: ActionCreated, AccountID: account.ID}, nil
		}
		if !stderrors.Is(err, store.ErrDuplicate) {
			return nil, storeError(err, "Account not found")
		}
		// A concurrent delivery created it; fall through to linking.
		existing, err = accounts.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, storeError(err, "Account not found")
	}

	if existing.ExternalIdentityID != "" {
		return &IdentityEventResult{Received: true, Action: ActionUnchanged, AccountID: existing.ID}, nil
	}

	linked, err := accounts.LinkExternalIdentity(ctx, existing.ID, user.ID)
	if err != nil {
		return nil, storeError(err, "Account not found")
	}
	action := ActionUnchanged
	if linked {
		action = ActionLinked
	}
	return &IdentityEventResult{Received: true, Action: action, AccountID: existing.ID}, nil
}
