package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dealer-portal/internal/models"
)

const applicationColumns = `id, business_name, contact_person, email, phone, whatsapp, address, tax_id,
	business_type, message, status, COALESCE(rejection_reason, ''), COALESCE(reviewed_by, ''),
	reviewed_at, created_at, updated_at`

// ApplicationRepository reads and writes dealer_applications.
type ApplicationRepository struct {
	q Querier
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.DealerApplication, error) {
	var (
		app        models.DealerApplication
		status     string
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		&app.ID, &app.BusinessName, &app.ContactPerson, &app.Email, &app.Phone, &app.WhatsApp,
		&app.Address, &app.TaxID, &app.BusinessType, &app.Message, &status,
		&app.RejectionReason, &app.ReviewedBy, &reviewedAt, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		app.ReviewedAt = &t
	}
	return &app, nil
}

// Get fetches an application by id.
func (r *ApplicationRepository) Get(ctx context.Context, id string) (*models.DealerApplication, error) {
	return r.get(ctx, `SELECT `+applicationColumns+` FROM dealer_applications WHERE id = $1`, id)
}

// GetForUpdate fetches an application and locks its row until the
// surrounding transaction ends.
func (r *ApplicationRepository) GetForUpdate(ctx context.Context, id string) (*models.DealerApplication, error) {
	return r.get(ctx, `SELECT `+applicationColumns+` FROM dealer_applications WHERE id = $1 FOR UPDATE`, id)
}

func (r *ApplicationRepository) get(ctx context.Context, query, id string) (*models.DealerApplication, error) {
	app, err := scanApplication(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select dealer application %s: %w", id, err)
	}
	return app, nil
}

// List returns applications newest first, optionally filtered by status.
func (r *ApplicationRepository) List(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.DealerApplication, error) {
	var (
		query strings.Builder
		args  []interface{}
	)
	query.WriteString(`SELECT ` + applicationColumns + ` FROM dealer_applications`)
	if status != "" {
		args = append(args, string(status))
		query.WriteString(fmt.Sprintf(` WHERE status = $%d`, len(args)))
	}
	args = append(args, limit, offset)
	query.WriteString(fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)))

	rows, err := r.q.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list dealer applications: %w", err)
	}
	defer rows.Close()

	apps := []models.DealerApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dealer application: %w", err)
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dealer applications: %w", err)
	}
	return apps, nil
}

// HasPending reports whether a pending application exists for email.
func (r *ApplicationRepository) HasPending(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM dealer_applications
			WHERE lower(email) = lower($1) AND status = 'pending'
		)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending application: %w", err)
	}
	return exists, nil
}

// Create inserts a pending application; the store assigns id and timestamps.
// A second pending application for the same email yields ErrDuplicate.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.DealerApplication) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO dealer_applications (
			business_name, contact_person, email, phone, whatsapp, address,
			tax_id, business_type, message, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		app.BusinessName, app.ContactPerson, app.Email, app.Phone, app.WhatsApp, app.Address,
		app.TaxID, app.BusinessType, app.Message, string(models.ApplicationPending),
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: pending application for %s: %w", ErrDuplicate, app.Email, err)
	}
	if err != nil {
		return fmt.Errorf("insert dealer application: %w", err)
	}
	app.Status = models.ApplicationPending
	return nil
}

// MarkApproved moves a pending application to approved.
// It returns ErrStatusChanged if the application is no longer pending.
func (r *ApplicationRepository) MarkApproved(ctx context.Context, id, reviewer string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE dealer_applications
		SET status = 'approved', reviewed_by = $2, reviewed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, nullString(reviewer))
	if err != nil {
		return fmt.Errorf("approve dealer application %s: %w", id, err)
	}
	return expectOneRow(res)
}

// MarkRejected moves a pending application to rejected and stores the reason.
func (r *ApplicationRepository) MarkRejected(ctx context.Context, id, reason, reviewer string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE dealer_applications
		SET status = 'rejected', rejection_reason = $2, reviewed_by = $3, reviewed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, nullString(reason), nullString(reviewer))
	if err != nil {
		return fmt.Errorf("reject dealer application %s: %w", id, err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatusChanged
	}
	return nil
}
