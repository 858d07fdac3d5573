package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

// UpsertPendingUser создает заявку на регистрацию или перезаписывает
// существующую с тем же email: повтор регистрации не плодит дубликатов.
func (s *Storage) UpsertPendingUser(ctx context.Context, pu models.PendingUser) (int64, error) {
	const op = "storage.UpsertPendingUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO pending_users (email, password_hash, phone, website_id)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (email) DO UPDATE
			  SET password_hash = EXCLUDED.password_hash,
			      phone = EXCLUDED.phone,
			      website_id = EXCLUDED.website_id,
			      updated_at = NOW()
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		pu.Email, pu.PasswordHash, pu.Phone, pu.WebsiteID).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

func scanPendingUser(row interface{ Scan(...any) error }) (*models.PendingUser, error) {
	pu := &models.PendingUser{}
	var websiteID sql.NullInt64
	if err := row.Scan(&pu.ID, &pu.Email, &pu.PasswordHash, &pu.Phone, &websiteID,
		&pu.CreatedAt, &pu.UpdatedAt); err != nil {
		return nil, err
	}
	if websiteID.Valid {
		pu.WebsiteID = &websiteID.Int64
	}
	return pu, nil
}

// GetPendingUserByEmail возвращает заявку по email, (nil, nil) если не найдена.
func (s *Storage) GetPendingUserByEmail(ctx context.Context, email string) (*models.PendingUser, error) {
	const op = "storage.GetPendingUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, email, password_hash, phone, website_id, created_at, updated_at
			  FROM pending_users
			  WHERE email = $1`
	pu, err := scanPendingUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pu, nil
}

// GetPendingUser возвращает заявку по ID.
func (s *Storage) GetPendingUser(ctx context.Context, id int64) (*models.PendingUser, error) {
	const op = "storage.GetPendingUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, email, password_hash, phone, website_id, created_at, updated_at
			  FROM pending_users
			  WHERE id = $1`
	pu, err := scanPendingUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrPendingUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pu, nil
}
