package dealer

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"dealer-portal/internal/common/auth"
	"dealer-portal/internal/common/config"
	"dealer-portal/internal/common/database"
	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/models"
	"dealer-portal/internal/notification"
	"dealer-portal/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type mockIdentity struct {
	GetUserByEmailFunc func(ctx context.Context, email string) (*auth.User, error)
	GetUserFunc        func(ctx context.Context, userID string) (*auth.User, error)
	CreateUserFunc     func(ctx context.Context, user *auth.User) (*auth.User, error)
	DeleteUserFunc     func(ctx context.Context, userID string) error

	mu      sync.Mutex
	deleted []string
}

func (m *mockIdentity) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	if m.GetUserByEmailFunc != nil {
		return m.GetUserByEmailFunc(ctx, email)
	}
	return &auth.User{ID: "kc-1", Email: email}, nil
}

func (m *mockIdentity) GetUser(ctx context.Context, userID string) (*auth.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, userID)
	}
	return nil, userNotFound()
}

func (m *mockIdentity) CreateUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, user)
	}
	user.ID = "kc-new"
	return user, nil
}

func (m *mockIdentity) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, userID)
	m.mu.Unlock()
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, userID)
	}
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (m *mockNotifier) Dispatch(ctx context.Context, msg notification.Message) *models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return &models.Notification{ID: "n-1", Type: string(msg.Kind), Status: notification.StatusSent}
}

func (m *mockNotifier) kinds() []notification.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification.Kind, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.Kind
	}
	return out
}

type fakeRoles struct {
	roles       map[string]models.Role
	lookups     int
	invalidated []string
}

func (f *fakeRoles) Role(ctx context.Context, email string) (models.Role, error) {
	f.lookups++
	role, ok := f.roles[email]
	if !ok {
		return "", store.ErrNotFound
	}
	return role, nil
}

func (f *fakeRoles) Invalidate(ctx context.Context, email string) {
	f.invalidated = append(f.invalidated, email)
}

func userNotFound() error {
	return &errors.StandardError{Code: errors.ErrCodeUserNotFound, Message: "User not found"}
}

// ==========================
// Test Helper Functions
// ==========================

const (
	adminEmail  = "admin@portal.com"
	dealerEmail = "dealer@portal.com"
	appID       = "3f1c2a9e-0000-4000-8000-000000000001"
	applicant   = "jane@acme.com"
)

var (
	applicationCols = []string{
		"id", "business_name", "contact_person", "email", "phone", "whatsapp", "address", "tax_id",
		"business_type", "message", "status", "rejection_reason", "reviewed_by",
		"reviewed_at", "created_at", "updated_at",
	}
	accountCols = []string{
		"id", "email", "display_name", "business_name", "phone", "whatsapp", "address", "tax_id",
		"role", "dealer_status", "external_identity_id", "created_at", "updated_at",
	}
)

type testEnv struct {
	svc      *Service
	mock     sqlmock.Sqlmock
	identity *mockIdentity
	notifier *mockNotifier
	roles    *fakeRoles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		mock:     mock,
		identity: &mockIdentity{},
		notifier: &mockNotifier{},
		roles: &fakeRoles{roles: map[string]models.Role{
			adminEmail:  models.RoleAdmin,
			dealerEmail: models.RoleDealer,
		}},
	}
	env.svc = NewService(Options{
		Store:    store.New(db),
		Identity: env.identity,
		Notifier: env.notifier,
		Roles:    env.roles,
		Logger:   logger.NewTestLogger(t),
	})
	return env
}

func applicationRow(status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(applicationCols).AddRow(
		appID, "Acme Traders", "Jane Doe", applicant, "+15550001", "+15550002", "1 Main St", "TAX-1",
		"retail", "", status, "", "", nil, now, now,
	)
}

func accountRow(id, externalID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(accountCols).AddRow(
		id, applicant, "", "", "", "", "", "", "dealer", "pending", externalID, now, now,
	)
}

func (e *testEnv) expectGetApplication(status string) {
	e.mock.ExpectQuery(`FROM dealer_applications WHERE id = \$1$`).
		WithArgs(appID).
		WillReturnRows(applicationRow(status))
}

func (e *testEnv) expectLockApplication(status string) {
	e.mock.ExpectQuery(`FROM dealer_applications WHERE id = \$1 FOR UPDATE`).
		WithArgs(appID).
		WillReturnRows(applicationRow(status))
}

func (e *testEnv) expectLockAccount(rows *sqlmock.Rows) {
	q := e.mock.ExpectQuery(`FROM accounts WHERE lower\(email\) = lower\(\$1\) FOR UPDATE`).WithArgs(applicant)
	if rows == nil {
		q.WillReturnError(sql.ErrNoRows)
		return
	}
	q.WillReturnRows(rows)
}

// expectAccountUpdate expects the approved-dealer overlay of the fixture application.
func (e *testEnv) expectAccountUpdate(accountID, externalID string) *sqlmock.ExpectedExec {
	return e.mock.ExpectExec(`UPDATE accounts SET role = \$2`).
		WithArgs(accountID, "dealer", "approved", "Acme Traders", "Jane Doe",
			"+15550001", "1 Main St", "TAX-1", "+15550002", externalID)
}

func (e *testEnv) expectMarkApproved(rowsAffected int64) {
	e.mock.ExpectExec(`UPDATE dealer_applications SET status = 'approved'`).
		WithArgs(appID, adminEmail).
		WillReturnResult(sqlmock.NewResult(0, rowsAffected))
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) *errors.StandardError {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %T: %v", err, err)
	assert.Equal(t, code, stdErr.Code)
	return stdErr
}

// ==========================
// Authorization
// ==========================

func TestAuthorizeAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.svc.AuthorizeAdmin(ctx, adminEmail))
	assertCode(t, env.svc.AuthorizeAdmin(ctx, ""), errors.ErrCodeUnauthenticated)
	assertCode(t, env.svc.AuthorizeAdmin(ctx, dealerEmail), errors.ErrCodeUnauthorized)
	assertCode(t, env.svc.AuthorizeAdmin(ctx, "stranger@x.com"), errors.ErrCodeUnauthorized)
}

func TestAuthorizeAdmin_HTTPStatuses(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.AuthorizeAdmin(context.Background(), "")
	assert.Equal(t, 401, errors.HTTPStatus(assertCode(t, err, errors.ErrCodeUnauthenticated).Code))

	err = env.svc.AuthorizeAdmin(context.Background(), dealerEmail)
	assert.Equal(t, 403, errors.HTTPStatus(assertCode(t, err, errors.ErrCodeUnauthorized).Code))
}

func TestAuthorizeAdmin_StoreRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(Options{Store: store.New(db), Identity: &mockIdentity{}, Logger: logger.NewNoOpLogger()})

	mock.ExpectQuery(`SELECT role FROM accounts`).WithArgs(adminEmail).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery(`SELECT role FROM accounts`).WithArgs(dealerEmail).
		WillReturnError(fmt.Errorf("connection reset by peer"))

	assert.NoError(t, svc.AuthorizeAdmin(context.Background(), adminEmail))
	assertCode(t, svc.AuthorizeAdmin(context.Background(), dealerEmail), errors.ErrCodeStoreFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Role cache
// ==========================

func TestCachedRoles(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	redisClient, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer redisClient.Close()

	next := &fakeRoles{roles: map[string]models.Role{adminEmail: models.RoleAdmin}}
	cached := NewCachedRoles(next, redisClient, time.Minute, logger.NewNoOpLogger())
	ctx := context.Background()

	role, err := cached.Role(ctx, adminEmail)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)
	assert.Equal(t, 1, next.lookups)

	role, err = cached.Role(ctx, "ADMIN@portal.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)
	assert.Equal(t, 1, next.lookups, "second lookup should be served from cache")

	cached.Invalidate(ctx, adminEmail)
	assert.False(t, mr.Exists(roleKey(adminEmail)))
	assert.Equal(t, []string{adminEmail}, next.invalidated)

	_, err = cached.Role(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, mr.Exists(roleKey("nobody@x.com")), "missing accounts are not cached")
}

func TestCachedRoles_FallsThroughWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	redisClient, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer redisClient.Close()
	mr.Close()

	next := &fakeRoles{roles: map[string]models.Role{adminEmail: models.RoleAdmin}}
	cached := NewCachedRoles(next, redisClient, time.Minute, logger.NewNoOpLogger())

	role, err := cached.Role(context.Background(), adminEmail)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)
}

func TestSplitName(t *testing.T) {
	first, last := splitName("  Jane   van Doe ")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "van Doe", last)

	first, last = splitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)
}
