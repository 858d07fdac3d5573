// Package activation реализует одностороннее превращение заявки в
// активного подписчика и продление действующей подписки после оплаты.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-licensing/internal/lib/licensekey"
	"github.com/magabrotheeeer/subscription-licensing/internal/storage/repository"
)

// Result итог активации или продления.
type Result struct {
	UserID            int64
	LicenseKey        string
	SubscriptionUntil time.Time
}

// ActivationRepository описывает транзакционные операции хранилища.
type ActivationRepository interface {
	// ActivateUser превращает заявку в пользователя в одной транзакции.
	ActivateUser(ctx context.Context, params repository.ActivateParams) (*repository.ActivationRow, error)
	// ExtendSubscription продлевает подписку с блокировкой строки пользователя.
	ExtendSubscription(ctx context.Context, userID int64, durationDays int, candidateKey string) (*repository.ActivationRow, error)
}

// Service реализует активацию и продление.
type Service struct {
	repo ActivationRepository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo ActivationRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// Activate выпускает новый лицензионный ключ и активирует заявку.
// Ключ выпускается до открытия транзакции хранилища.
func (s *Service) Activate(ctx context.Context, pendingUserID, invoiceID int64, durationDays int) (*Result, error) {
	const op = "activation.Activate"

	key := licensekey.Mint()
	row, err := s.repo.ActivateUser(ctx, repository.ActivateParams{
		PendingUserID: pendingUserID,
		InvoiceID:     invoiceID,
		LicenseKey:    key,
		DurationDays:  durationDays,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("pending user promoted",
		slog.Int64("pending_user_id", pendingUserID),
		slog.Int64("user_id", row.UserID),
		slog.String("license_key", licensekey.Mask(row.LicenseKey)),
		slog.Time("subscription_until", row.SubscriptionUntil))

	return &Result{
		UserID:            row.UserID,
		LicenseKey:        row.LicenseKey,
		SubscriptionUntil: row.SubscriptionUntil,
	}, nil
}

// Extend продлевает подписку пользователя. Существующий ключ сохраняется,
// новый выпускается только если ключа нет.
func (s *Service) Extend(ctx context.Context, userID int64, durationDays int) (*Result, error) {
	const op = "activation.Extend"

	row, err := s.repo.ExtendSubscription(ctx, userID, durationDays, licensekey.Mint())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription extended",
		slog.Int64("user_id", userID),
		slog.Int("days", durationDays),
		slog.Time("subscription_until", row.SubscriptionUntil))

	return &Result{
		UserID:            row.UserID,
		LicenseKey:        row.LicenseKey,
		SubscriptionUntil: row.SubscriptionUntil,
	}, nil
}
