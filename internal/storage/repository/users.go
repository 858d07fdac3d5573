package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

const userColumns = `id, email, password_hash, phone, website_id, license_key,
			      license_status, subscription_until, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var websiteID sql.NullInt64
	var subscriptionUntil sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Phone, &websiteID,
		&u.LicenseKey, &u.LicenseStatus, &subscriptionUntil, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if websiteID.Valid {
		u.WebsiteID = &websiteID.Int64
	}
	if subscriptionUntil.Valid {
		t := subscriptionUntil.Time
		u.SubscriptionUntil = &t
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email, (nil, nil) если не найден.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SetLicenseStatus выставляет пользователю новый статус лицензии.
func (s *Storage) SetLicenseStatus(ctx context.Context, userID int64, status string) error {
	const op = "storage.SetLicenseStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET license_status = $1, updated_at = NOW()
			  WHERE id = $2`
	_, err := s.DB.ExecContext(ctx, query, status, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UserLicenseRow строка выборки для фоновой сверки: пользователь
// вместе с публичным URL его сайта.
type UserLicenseRow struct {
	UserID        int64
	LicenseKey    string
	LicenseStatus string
	WebsiteURL    string
}

// ListUsersForLicenseCheck возвращает пользователей со "значимыми" статусами
// лицензии вместе с URL их сайтов для обращения к центру лицензирования.
func (s *Storage) ListUsersForLicenseCheck(ctx context.Context) ([]*UserLicenseRow, error) {
	const op = "storage.ListUsersForLicenseCheck"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT u.id, u.license_key, u.license_status, COALESCE(w.url, '')
			  FROM users u
			  LEFT JOIN websites w ON w.id = u.website_id
			  WHERE u.license_status IN ($1, $2, $3, $4)
			  ORDER BY u.id`
	rows, err := s.DB.QueryContext(ctx, query,
		models.LicenseActive, models.LicenseSuspended, models.LicenseExpired, models.LicenseReissued)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*UserLicenseRow
	for rows.Next() {
		var r UserLicenseRow
		if err := rows.Scan(&r.UserID, &r.LicenseKey, &r.LicenseStatus, &r.WebsiteURL); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
