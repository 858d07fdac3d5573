package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

// ActivateParams входные данные одноразовой активации заявки.
type ActivateParams struct {
	PendingUserID int64
	InvoiceID     int64
	LicenseKey    string // Новый ключ, выпущенный сервисом до транзакции
	DurationDays  int
}

// ActivationRow результат активации.
type ActivationRow struct {
	UserID            int64
	LicenseKey        string
	SubscriptionUntil time.Time
}

// ActivateUser превращает заявку в активного пользователя. Вся
// последовательность — одна транзакция: вставка пользователя, запись в
// журнал лицензий, перевод всех счетов заявки на пользователя, удаление
// заявки. Частичное выполнение снаружи не наблюдаемо.
func (s *Storage) ActivateUser(ctx context.Context, params ActivateParams) (*ActivationRow, error) {
	const op = "storage.ActivateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	lockPending := `SELECT id, email, password_hash, phone, website_id, created_at, updated_at
			  FROM pending_users
			  WHERE id = $1
			  FOR UPDATE`
	pu, err := scanPendingUser(tx.QueryRowContext(ctx, lockPending, params.PendingUserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrPendingUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pu.WebsiteID == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrWebsiteMissing)
	}

	until := time.Now().UTC().AddDate(0, 0, params.DurationDays)
	insertUser := `INSERT INTO users (email, password_hash, phone, website_id, license_key,
			      license_status, subscription_until)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	var userID int64
	if err := tx.QueryRowContext(ctx, insertUser,
		pu.Email, pu.PasswordHash, pu.Phone, pu.WebsiteID, params.LicenseKey,
		models.LicenseActive, until).Scan(&userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	insertHistory := `INSERT INTO license_history (user_id, action, details)
			  VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, insertHistory, userID, models.HistoryCreated,
		fmt.Sprintf("activated for %d days", params.DurationDays)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Пользователю переходят все счета заявки, не только оплаченный:
	// отмененные и проваленные счета повторных регистраций иначе
	// остались бы ссылаться на удаляемую заявку
	repointInvoices := `UPDATE invoices
			  SET user_id = $1, pending_user_id = NULL
			  WHERE id = $2 OR pending_user_id = $3`
	if _, err := tx.ExecContext(ctx, repointInvoices, userID, params.InvoiceID, params.PendingUserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	deletePending := `DELETE FROM pending_users WHERE id = $1`
	if _, err := tx.ExecContext(ctx, deletePending, params.PendingUserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ActivationRow{
		UserID:            userID,
		LicenseKey:        params.LicenseKey,
		SubscriptionUntil: until,
	}, nil
}

// ExtendSubscription продлевает подписку пользователя внутри транзакции
// с блокировкой строки: новая дата считается от максимума из "сейчас" и
// текущей даты окончания, поэтому раннее продление не теряет остаток, а
// два одновременных продления сериализуются и применяются оба.
// candidateKey используется только если у пользователя еще нет ключа.
func (s *Storage) ExtendSubscription(ctx context.Context, userID int64, durationDays int, candidateKey string) (*ActivationRow, error) {
	const op = "storage.ExtendSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	lockUser := `SELECT license_key, subscription_until
			  FROM users
			  WHERE id = $1
			  FOR UPDATE`
	var licenseKey string
	var subscriptionUntil sql.NullTime
	if err := tx.QueryRowContext(ctx, lockUser, userID).Scan(&licenseKey, &subscriptionUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	base := now
	if subscriptionUntil.Valid && subscriptionUntil.Time.After(now) {
		base = subscriptionUntil.Time
	}
	until := base.AddDate(0, 0, durationDays)

	if licenseKey == "" {
		licenseKey = candidateKey
	}

	updateUser := `UPDATE users
			  SET license_key = $1, license_status = $2, subscription_until = $3, updated_at = NOW()
			  WHERE id = $4`
	if _, err := tx.ExecContext(ctx, updateUser, licenseKey, models.LicenseActive, until, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	insertHistory := `INSERT INTO license_history (user_id, action, details)
			  VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, insertHistory, userID, models.HistoryRenewed,
		fmt.Sprintf("extended by %d days", durationDays)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ActivationRow{
		UserID:            userID,
		LicenseKey:        licenseKey,
		SubscriptionUntil: until,
	}, nil
}
