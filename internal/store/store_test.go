package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"dealer-portal/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

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

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func applicationRow(id, email, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(applicationCols).AddRow(
		id, "Acme Traders", "Jane Doe", email, "+15550001", "+15550002", "1 Main St", "TAX-1",
		"retail", "hello", status, "", "", nil, now, now,
	)
}

// ==========================
// Applications
// ==========================

func TestApplicationRepository_Get(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM dealer_applications WHERE id = \$1`).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", "a@x.com", "pending"))

	app, err := s.Applications().Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, models.ApplicationPending, app.Status)
	assert.Equal(t, "TAX-1", app.TaxID)
	assert.Nil(t, app.ReviewedAt)
	assert.True(t, app.IsPending())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM dealer_applications WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Applications().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_List(t *testing.T) {
	s, mock := newMockStore(t)

	rows := applicationRow("app-1", "a@x.com", "pending")
	rows.AddRow("app-2", "Beta", "Bob", "b@x.com", "", "", "", "", "", "", "pending", "", "", nil, time.Now(), time.Now())

	mock.ExpectQuery(`FROM dealer_applications WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("pending", 50, 0).
		WillReturnRows(rows)

	apps, err := s.Applications().List(context.Background(), models.ApplicationPending, 50, 0)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
	assert.Equal(t, "b@x.com", apps[1].Email)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_ListAll(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM dealer_applications ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 40).
		WillReturnRows(sqlmock.NewRows(applicationCols))

	apps, err := s.Applications().List(context.Background(), "", 20, 40)
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_Create(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO dealer_applications`).
		WithArgs("Acme", "Jane", "a@x.com", "", "", "", "", "", "", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("app-9", now, now))

	app := &models.DealerApplication{BusinessName: "Acme", ContactPerson: "Jane", Email: "a@x.com"}
	require.NoError(t, s.Applications().Create(context.Background(), app))
	assert.Equal(t, "app-9", app.ID)
	assert.Equal(t, models.ApplicationPending, app.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_HasPending(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.Applications().HasPending(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_MarkApproved_StatusGuard(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE dealer_applications SET status = 'approved'`).
		WithArgs("app-1", "admin@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE dealer_applications SET status = 'approved'`).
		WithArgs("app-1", "admin@x.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := s.Applications()
	require.NoError(t, repo.MarkApproved(context.Background(), "app-1", "admin@x.com"))
	assert.ErrorIs(t, repo.MarkApproved(context.Background(), "app-1", "admin@x.com"), ErrStatusChanged)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_MarkRejected(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SET status = 'rejected', rejection_reason = \$2`).
		WithArgs("app-1", "Incomplete documents", "admin@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET status = 'rejected', rejection_reason = \$2`).
		WithArgs("app-2", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := s.Applications()
	require.NoError(t, repo.MarkRejected(context.Background(), "app-1", "Incomplete documents", "admin@x.com"))
	require.NoError(t, repo.MarkRejected(context.Background(), "app-2", "", ""))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Accounts
// ==========================

func TestAccountRepository_GetByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM accounts WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(
			"acc-1", "a@x.com", "Jane", "Acme", "", "", "", "", "dealer", "pending", "", now, now,
		))

	acct, err := s.Accounts().GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDealer, acct.Role)
	assert.Equal(t, models.DealerStatusPending, acct.DealerStatus)
	assert.Empty(t, acct.ExternalIdentityID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetRole(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT role FROM accounts`).
		WithArgs("admin@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery(`SELECT role FROM accounts`).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	role, err := s.Accounts().GetRole(context.Background(), "admin@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	_, err = s.Accounts().GetRole(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CreateDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"accounts_email_key\""})

	acct := &models.Account{Email: "a@x.com", Role: models.RoleDealer, DealerStatus: models.DealerStatusApproved}
	err := s.Accounts().Create(context.Background(), acct)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, IsUniqueViolation(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CreateOtherError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnError(errors.New("connection refused"))

	err := s.Accounts().Create(context.Background(), &models.Account{Email: "a@x.com", Role: models.RoleDealer})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_UpdateDealerProfile(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE accounts SET role = \$2`).
		WithArgs("acc-1", "dealer", "approved", "Acme", "Jane", "+1", "1 Main St", "TAX-1", "+2", "kc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	acct := &models.Account{
		ID: "acc-1", Role: models.RoleDealer, DealerStatus: models.DealerStatusApproved,
		BusinessName: "Acme", DisplayName: "Jane", Phone: "+1", Address: "1 Main St",
		TaxID: "TAX-1", WhatsApp: "+2", ExternalIdentityID: "kc-1",
	}
	require.NoError(t, s.Accounts().UpdateDealerProfile(context.Background(), acct))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_UpdateDealerProfileIdentityTaken(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE accounts SET role = \$2`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_external_identity_key"})

	acct := &models.Account{ID: "acc-1", Role: models.RoleDealer, ExternalIdentityID: "kc-1"}
	err := s.Accounts().UpdateDealerProfile(context.Background(), acct)
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_LinkExternalIdentity(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE accounts SET external_identity_id = \$2`).
		WithArgs("acc-1", "kc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	linked, err := s.Accounts().LinkExternalIdentity(context.Background(), "acc-1", "kc-1")
	require.NoError(t, err)
	assert.False(t, linked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Transactions
// ==========================

func TestWithTx_CommitAndSavepoints(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT account_insert`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT account_insert`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`RELEASE SAVEPOINT account_insert`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx *Tx) error {
		ctx := context.Background()
		if err := tx.Savepoint(ctx, "account_insert"); err != nil {
			return err
		}
		if err := tx.RollbackTo(ctx, "account_insert"); err != nil {
			return err
		}
		return tx.Release(ctx, "account_insert")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackPreservesError(t *testing.T) {
	s, mock := newMockStore(t)
	sentinel := errors.New("reconcile failed")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx *Tx) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_RejectsUnsafeSavepointName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.Savepoint(context.Background(), "x; DROP TABLE accounts")
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid savepoint name")
	assert.NoError(t, mock.ExpectationsWereMet())
}
