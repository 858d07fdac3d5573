package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

// AppendLicenseHistory добавляет строку в журнал лицензионных действий.
// Журнал только пополняется, записи не меняются и не удаляются.
func (s *Storage) AppendLicenseHistory(ctx context.Context, userID int64, action, details string) error {
	const op = "storage.AppendLicenseHistory"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO license_history (user_id, action, details)
			  VALUES ($1, $2, $3)`
	_, err := s.DB.ExecContext(ctx, query, userID, action, details)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListLicenseHistory возвращает журнал действий пользователя.
func (s *Storage) ListLicenseHistory(ctx context.Context, userID int64) ([]*models.LicenseHistory, error) {
	const op = "storage.ListLicenseHistory"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, action, details, created_at
			  FROM license_history
			  WHERE user_id = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.LicenseHistory
	for rows.Next() {
		var h models.LicenseHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.Action, &h.Details, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
