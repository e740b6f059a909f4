package dealer

import (
	"context"
	"time"

	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/notification"
	"dealer-portal/internal/store"
)

// Reject marks a pending application rejected. No account is touched.
func (s *Service) Reject(ctx context.Context, callerEmail, applicationID, reason string) (result *RejectResult, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "reject", start, err) }()

	if err := s.AuthorizeAdmin(ctx, callerEmail); err != nil {
		return nil, err
	}
	if applicationID == "" {
		return nil, errors.NewInvalidError("applicationId is required", "")
	}

	app, err := s.store.Applications().Get(ctx, applicationID)
	if err != nil {
		return nil, storeError(err, msgNotFound)
	}
	if !app.IsPending() {
		return nil, errors.NewConflictError(msgAlreadyProcessed)
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		locked, err := tx.Applications.GetForUpdate(ctx, app.ID)
		if err != nil {
			return err
		}
		if !locked.IsPending() {
			return store.ErrStatusChanged
		}
		return tx.Applications.MarkRejected(ctx, locked.ID, reason, callerEmail)
	})
	if err != nil {
		return nil, storeError(err, msgNotFound)
	}

	s.logger.Info("dealer application rejected", map[string]interface{}{
		"applicationId": app.ID,
		"reviewer":      callerEmail,
	})

	if reason == "" {
		reason = "not specified"
	}
	s.notify(ctx, applicationMessage(notification.KindDealerRejected, app, map[string]interface{}{"reason": reason}))

	return &RejectResult{Success: true, Message: msgRejected}, nil
}
