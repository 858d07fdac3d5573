package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

// CreateWebsite сохраняет новый сайт и возвращает его ID.
func (s *Storage) CreateWebsite(ctx context.Context, website models.Website) (int64, error) {
	const op = "storage.CreateWebsite"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO websites (url, name, status, license_key)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		website.URL, website.Name, website.Status, website.LicenseKey).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetWebsiteByURL возвращает сайт по его публичному URL, (nil, nil) если не найден.
func (s *Storage) GetWebsiteByURL(ctx context.Context, url string) (*models.Website, error) {
	const op = "storage.GetWebsiteByURL"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, url, name, status, license_key, created_at, updated_at
			  FROM websites
			  WHERE url = $1`
	w := &models.Website{}
	err := s.DB.QueryRowContext(ctx, query, url).Scan(
		&w.ID, &w.URL, &w.Name, &w.Status, &w.LicenseKey, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

// GetWebsite возвращает сайт по ID.
func (s *Storage) GetWebsite(ctx context.Context, id int64) (*models.Website, error) {
	const op = "storage.GetWebsite"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, url, name, status, license_key, created_at, updated_at
			  FROM websites
			  WHERE id = $1`
	w := &models.Website{}
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&w.ID, &w.URL, &w.Name, &w.Status, &w.LicenseKey, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

// UpdateWebsiteStatus выставляет сайту новый статус.
func (s *Storage) UpdateWebsiteStatus(ctx context.Context, id int64, status string) error {
	const op = "storage.UpdateWebsiteStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE websites
			  SET status = $1, updated_at = NOW()
			  WHERE id = $2`
	_, err := s.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListWebsitesForLicenseCheck возвращает сайты, подлежащие фоновой сверке:
// approved и suspended, а также pending — сайты, зарегистрированные в момент
// недоступности центра лицензирования и ожидающие вердикта.
func (s *Storage) ListWebsitesForLicenseCheck(ctx context.Context) ([]*models.Website, error) {
	const op = "storage.ListWebsitesForLicenseCheck"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, url, name, status, license_key, created_at, updated_at
			  FROM websites
			  WHERE status IN ($1, $2, $3)
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, models.WebsitePending, models.WebsiteApproved, models.WebsiteSuspended)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Website
	for rows.Next() {
		var w models.Website
		if err := rows.Scan(&w.ID, &w.URL, &w.Name, &w.Status, &w.LicenseKey,
			&w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
