package dealer

import (
	"context"
	stderrors "errors"
	"time"

	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/metrics"
	"dealer-portal/internal/models"
	"dealer-portal/internal/notification"
	"dealer-portal/internal/store"
)

// Account reconciliation branches
const (
	branchInsert        = "insert"
	branchUpdate        = "update"
	branchRaceRecovered = "race_recovered"
)

// Approve turns a pending application into an approved dealer account.
//
// The application row is locked for the whole reconciliation, so a
// concurrent approve or reject of the same application waits and then
// fails with CONFLICT. The account row is updated when it exists and
// inserted otherwise; an insert that loses a race on the email unique
// index is rolled back to a savepoint and retried as an update.
func (s *Service) Approve(ctx context.Context, callerEmail, applicationID string) (result *ApproveResult, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "approve", start, err) }()

	if err := s.AuthorizeAdmin(ctx, callerEmail); err != nil {
		return nil, err
	}
	if applicationID == "" {
		return nil, errors.NewInvalidError("applicationId is required", "")
	}

	log := s.logger.WithFields(map[string]interface{}{
		"applicationId": applicationID,
		"reviewer":      callerEmail,
	})

	app, err := s.store.Applications().Get(ctx, applicationID)
	if err != nil {
		return nil, storeError(err, msgNotFound)
	}
	if !app.IsPending() {
		return nil, errors.NewConflictError(msgAlreadyProcessed)
	}

	identity, err := s.identity.GetUserByEmail(ctx, app.Email)
	if errors.HasCode(err, errors.ErrCodeUserNotFound) {
		log.Info("approval blocked, applicant has no identity", map[string]interface{}{"email": app.Email})
		return nil, errors.NewInvalidError(msgIdentityMissing, app.Email)
	}
	if err != nil {
		return nil, identityError(err)
	}

	var (
		account *models.Account
		branch  string
	)
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		locked, err := tx.Applications.GetForUpdate(ctx, app.ID)
		if err != nil {
			return err
		}
		if !locked.IsPending() {
			return store.ErrStatusChanged
		}

		account, branch, err = reconcileAccount(ctx, tx, locked, identity.ID)
		if err != nil {
			return accountError(err, identity.ID)
		}

		app = locked
		return tx.Applications.MarkApproved(ctx, locked.ID, callerEmail)
	})
	if err != nil {
		log.Error("approval failed", map[string]interface{}{"error": err})
		return nil, storeError(err, msgNotFound)
	}

	metrics.AccountReconciliations.WithLabelValues(branch).Inc()
	log.Info("dealer approved", map[string]interface{}{
		"accountId": account.ID,
		"branch":    branch,
	})

	s.roles.Invalidate(ctx, app.Email)
	s.notify(ctx, applicationMessage(notification.KindDealerApproved, app, nil))

	return &ApproveResult{
		Success:  true,
		Message:  msgApproved,
		DealerID: account.ID,
		DealerInfo: DealerInfo{
			Email:         app.Email,
			BusinessName:  app.BusinessName,
			ContactPerson: app.ContactPerson,
			Phone:         app.Phone,
			WhatsApp:      app.WhatsApp,
		},
	}, nil
}

// reconcileAccount makes the account for app.Email an approved dealer
// account carrying the application's business fields.
func reconcileAccount(ctx context.Context, tx *store.Tx, app *models.DealerApplication, externalID string) (*models.Account, string, error) {
	existing, err := tx.Accounts.GetByEmailForUpdate(ctx, app.Email)
	if err == nil {
		existing.ApplyApplication(app, externalID)
		return existing, branchUpdate, tx.Accounts.UpdateDealerProfile(ctx, existing)
	}
	if !stderrors.Is(err, store.ErrNotFound) {
		return nil, "", err
	}

	account := &models.Account{Email: app.Email}
	account.ApplyApplication(app, externalID)

	if err := tx.Savepoint(ctx, accountSavepointName); err != nil {
		return nil, "", err
	}
	err = tx.Accounts.Create(ctx, account)
	if err == nil {
		return account, branchInsert, tx.Release(ctx, accountSavepointName)
	}
	if !stderrors.Is(err, store.ErrDuplicate) {
		return nil, "", err
	}

	// Another transaction inserted the account after our lookup, or the
	// identity is already linked to an account under another email.
	if err := tx.RollbackTo(ctx, accountSavepointName); err != nil {
		return nil, "", err
	}
	existing, err = tx.Accounts.GetByEmailForUpdate(ctx, app.Email)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, "", store.ErrDuplicate
	}
	if err != nil {
		return nil, "", err
	}
	existing.ApplyApplication(app, externalID)
	return existing, branchRaceRecovered, tx.Accounts.UpdateDealerProfile(ctx, existing)
}

// accountError maps account side store errors so that NOT_FOUND stays
// reserved for the application lookup.
func accountError(err error, externalID string) error {
	switch {
	case stderrors.Is(err, store.ErrDuplicate):
		return errors.NewInvalidError(msgIdentityLinked, externalID)
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewStoreFailureError("Account changed during approval", err)
	default:
		return err
	}
}
