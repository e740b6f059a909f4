package dealer

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/validation"
	"dealer-portal/internal/models"
	"dealer-portal/internal/notification"
	"dealer-portal/internal/store"
)

// Submit records a public dealer application. Only one pending
// application may exist per email.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (result *SubmitResult, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "submit", start, err) }()

	req.Email = validation.NormalizeEmail(req.Email)
	if !validation.ValidateEmail(req.Email) {
		return nil, errors.NewInvalidError("A valid email is required", req.Email)
	}
	if strings.TrimSpace(req.BusinessName) == "" || strings.TrimSpace(req.ContactPerson) == "" {
		return nil, errors.NewInvalidError("businessName and contactPerson are required", "")
	}

	apps := s.store.Applications()

	pending, err := apps.HasPending(ctx, req.Email)
	if err != nil {
		return nil, storeError(err, msgNotFound)
	}
	if pending {
		return nil, errors.NewConflictError(msgPendingExists)
	}

	app := &models.DealerApplication{
		BusinessName:  strings.TrimSpace(req.BusinessName),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         req.Email,
		Phone:         req.Phone,
		WhatsApp:      req.WhatsApp,
		Address:       req.Address,
		TaxID:         req.TaxID,
		BusinessType:  req.BusinessType,
		Message:       req.Message,
	}
	if err := apps.Create(ctx, app); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, errors.NewConflictError(msgPendingExists)
		}
		return nil, storeError(err, msgNotFound)
	}

	s.logger.Info("dealer application received", map[string]interface{}{
		"applicationId": app.ID,
		"email":         app.Email,
	})
	s.notify(ctx, applicationMessage(notification.KindApplicationReceived, app, nil))

	return &SubmitResult{Success: true, ApplicationID: app.ID, Status: app.Status}, nil
}

// ListApplications returns applications newest first. An empty status lists all.
func (s *Service) ListApplications(ctx context.Context, callerEmail string, status models.ApplicationStatus, limit, offset int) (*ListResult, error) {
	if err := s.AuthorizeAdmin(ctx, callerEmail); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, errors.NewInvalidError("Invalid status filter", string(status))
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	apps, err := s.store.Applications().List(ctx, status, limit, offset)
	if err != nil {
		return nil, storeError(err, msgNotFound)
	}
	return &ListResult{Applications: apps, Limit: limit, Offset: offset}, nil
}

func (s *Service) GetApplication(ctx context.Context, callerEmail, applicationID string) (*models.DealerApplication, error) {
	if err := s.AuthorizeAdmin(ctx, callerEmail); err != nil {
		return nil, err
	}
	app, err := s.store.Applications().Get(ctx, applicationID)
	if err != nil {
		return nil, storeError(err, msgNotFound)
	}
	return app, nil
}
