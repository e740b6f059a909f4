package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dealer-portal/internal/models"
)

const accountColumns = `id, email, display_name, business_name, phone, whatsapp, address, tax_id,
	role, COALESCE(dealer_status, ''), COALESCE(external_identity_id, ''), created_at, updated_at`

// AccountRepository reads and writes accounts.
type AccountRepository struct {
	q Querier
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		acct         models.Account
		role         string
		dealerStatus string
	)
	err := row.Scan(
		&acct.ID, &acct.Email, &acct.DisplayName, &acct.BusinessName, &acct.Phone, &acct.WhatsApp,
		&acct.Address, &acct.TaxID, &role, &dealerStatus, &acct.ExternalIdentityID,
		&acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acct.Role = models.Role(role)
	acct.DealerStatus = models.DealerStatus(dealerStatus)
	return &acct, nil
}

// GetByEmail fetches the account for email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
}

// GetByEmailForUpdate is GetByEmail with a row lock.
func (r *AccountRepository) GetByEmailForUpdate(ctx context.Context, email string) (*models.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1) FOR UPDATE`, email)
}

func (r *AccountRepository) get(ctx context.Context, query, email string) (*models.Account, error) {
	acct, err := scanAccount(r.q.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account %s: %w", email, err)
	}
	return acct, nil
}

// GetRole returns only the role column, used for authorization checks.
func (r *AccountRepository) GetRole(ctx context.Context, email string) (models.Role, error) {
	var role string
	err := r.q.QueryRowContext(ctx, `SELECT role FROM accounts WHERE lower(email) = lower($1)`, email).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select role for %s: %w", email, err)
	}
	return models.Role(role), nil
}

// Create inserts an account. The store generates the id; a duplicate
// email or external identity yields ErrDuplicate.
func (r *AccountRepository) Create(ctx context.Context, acct *models.Account) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO accounts (
			email, display_name, business_name, phone, whatsapp, address, tax_id,
			role, dealer_status, external_identity_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		acct.Email, acct.DisplayName, acct.BusinessName, acct.Phone, acct.WhatsApp, acct.Address, acct.TaxID,
		string(acct.Role), nullString(string(acct.DealerStatus)), nullString(acct.ExternalIdentityID),
	).Scan(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: account %s: %w", ErrDuplicate, acct.Email, err)
	}
	if err != nil {
		return fmt.Errorf("insert account %s: %w", acct.Email, err)
	}
	return nil
}

// UpdateDealerProfile writes role, dealer status, business fields and the
// external identity link of an existing account. An identity linked to
// another account yields ErrDuplicate.
func (r *AccountRepository) UpdateDealerProfile(ctx context.Context, acct *models.Account) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET role = $2, dealer_status = $3, business_name = $4, display_name = $5,
			phone = $6, address = $7, tax_id = $8, whatsapp = $9,
			external_identity_id = COALESCE($10, external_identity_id), updated_at = now()
		WHERE id = $1`,
		acct.ID, string(acct.Role), nullString(string(acct.DealerStatus)), acct.BusinessName, acct.DisplayName,
		acct.Phone, acct.Address, acct.TaxID, acct.WhatsApp, nullString(acct.ExternalIdentityID),
	)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: external identity %s: %w", ErrDuplicate, acct.ExternalIdentityID, err)
	}
	if err != nil {
		return fmt.Errorf("update account %s: %w", acct.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkExternalIdentity sets external_identity_id when it is still empty.
func (r *AccountRepository) LinkExternalIdentity(ctx context.Context, id, externalID string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET external_identity_id = $2, updated_at = now()
		WHERE id = $1 AND external_identity_id IS NULL`, id, externalID)
	if IsUniqueViolation(err) {
		return false, fmt.Errorf("%w: external identity %s: %w", ErrDuplicate, externalID, err)
	}
	if err != nil {
		return false, fmt.Errorf("link external identity for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
