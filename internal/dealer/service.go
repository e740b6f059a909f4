// Package dealer implements dealer onboarding: reviewing applications,
// reconciling the applicant's identity and account on approval, inviting
// dealers directly and accepting public applications.
package dealer

import (
	"context"
	stderrors "errors"
	"time"

	"dealer-portal/internal/common/auth"
	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/metrics"
	"dealer-portal/internal/common/observability"
	"dealer-portal/internal/models"
	"dealer-portal/internal/notification"
	"dealer-portal/internal/store"
)

// IdentityProvider manages users in the external identity provider.
// GetUserByEmail and GetUser report a missing user with code USER_NOT_FOUND.
type IdentityProvider interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	GetUser(ctx context.Context, userID string) (*auth.User, error)
	CreateUser(ctx context.Context, user *auth.User) (*auth.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Notifier delivers best-effort notifications. It must not block on or
// report delivery failures.
type Notifier interface {
	Dispatch(ctx context.Context, msg notification.Message) *models.Notification
}

type Options struct {
	Store         *store.Store
	Identity      IdentityProvider
	Notifier      Notifier
	Roles         RoleResolver
	Observability *observability.Observability
	Logger        logger.Logger
}

type Service struct {
	store    *store.Store
	identity IdentityProvider
	notifier Notifier
	roles    RoleResolver
	obs      *observability.Observability
	logger   logger.Logger
}

// NewService wires the service. When Roles is nil, roles are read from the store.
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	roles := opts.Roles
	if roles == nil {
		roles = NewStoreRoles(opts.Store.Accounts())
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notification.NewDispatcher(nil, log)
	}
	return &Service{
		store:    opts.Store,
		identity: opts.Identity,
		notifier: notifier,
		roles:    roles,
		obs:      opts.Observability,
		logger:   log.WithFields(map[string]interface{}{"component": "dealer"}),
	}
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthorizeAdmin checks that callerEmail belongs to an admin account.
func (s *Service) AuthorizeAdmin(ctx context.Context, callerEmail string) error {
	if callerEmail == "" {
		return errors.NewUnauthenticatedError("no authenticated caller")
	}
	role, err := s.roles.Role(ctx, callerEmail)
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewUnauthorizedError("caller has no account")
	}
	if err != nil {
		return errors.NewStoreFailureError("Failed to resolve caller role", err)
	}
	if role != models.RoleAdmin {
		return errors.NewUnauthorizedError("caller role is " + string(role))
	}
	return nil
}

// storeError maps store errors to the service taxonomy. notFound is the
// message used when the record does not exist.
func storeError(err error, notFound string) error {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return stdErr
	}
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewNotFoundError(notFound)
	case stderrors.Is(err, store.ErrStatusChanged):
		return errors.NewConflictError(msgAlreadyProcessed)
	default:
		return errors.NewStoreFailureError("Database operation failed", err)
	}
}

// identityError maps identity provider failures that are not "user not found".
func identityError(err error) error {
	if _, ok := errors.AsStandardError(err); ok {
		return err
	}
	return errors.NewExternalServiceError("identity provider", err)
}

func (s *Service) record(ctx context.Context, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errors.ErrCodeInternal)
		if stdErr, ok := errors.AsStandardError(err); ok {
			outcome = string(stdErr.Code)
		}
	}
	metrics.DealerOperations.WithLabelValues(operation, outcome).Inc()
	s.obs.RecordReconciliation(ctx, operation, outcome, time.Since(start))
}

// notify dispatches msg after the operation has committed. The request
// context may already be cancelled by the time a slow channel runs, so
// delivery uses a detached context.
func (s *Service) notify(ctx context.Context, msg notification.Message) {
	result := s.notifier.Dispatch(context.WithoutCancel(ctx), msg)
	if result == nil {
		return
	}
	fields := map[string]interface{}{
		"notificationId": result.ID,
		"kind":           msg.Kind,
		"status":         result.Status,
		"channels":       result.Channels,
	}
	if result.Status == notification.StatusFailed {
		s.logger.Warn("notification not delivered", fields)
		return
	}
	s.logger.Debug("notification dispatched", fields)
}

func applicationMessage(kind notification.Kind, app *models.DealerApplication, extra map[string]interface{}) notification.Message {
	data := map[string]interface{}{
		"applicationId": app.ID,
		"businessName":  app.BusinessName,
		"contactPerson": app.ContactPerson,
		"email":         app.Email,
	}
	for k, v := range extra {
		data[k] = v
	}
	return notification.Message{
		Kind: kind,
		Recipient: notification.Recipient{
			Name:     app.ContactPerson,
			Email:    app.Email,
			Phone:    app.Phone,
			WhatsApp: app.WhatsApp,
		},
		Data: data,
	}
}
