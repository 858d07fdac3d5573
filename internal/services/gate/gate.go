// Package gate реализует подписочный шлюз: решение на регистрации и логине,
// пускать ли вызывающего дальше или сначала отправить его платить.
// Отказ по состоянию подписки всегда сопровождается ссылкой на оплату.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-licensing/internal/config"
	"github.com/magabrotheeeer/subscription-licensing/internal/licenseauthority"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/password"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/invoice"
)

// UserRepository описывает контракт для работы с пользователями.
type UserRepository interface {
	// GetUserByEmail возвращает пользователя или (nil, nil), если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUser возвращает пользователя по ID.
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// SetLicenseStatus выставляет статус лицензии.
	SetLicenseStatus(ctx context.Context, userID int64, status string) error
}

// PendingUserRepository описывает контракт для заявок на регистрацию.
type PendingUserRepository interface {
	UpsertPendingUser(ctx context.Context, pu models.PendingUser) (int64, error)
	GetPendingUserByEmail(ctx context.Context, email string) (*models.PendingUser, error)
}

// WebsiteRepository описывает контракт для сайтов.
type WebsiteRepository interface {
	GetWebsiteByURL(ctx context.Context, url string) (*models.Website, error)
	CreateWebsite(ctx context.Context, website models.Website) (int64, error)
	UpdateWebsiteStatus(ctx context.Context, id int64, status string) error
}

// InvoiceCreator выписывает счета.
type InvoiceCreator interface {
	Create(ctx context.Context, owner invoice.Owner, purpose string, amount int64, customerMobile string) (*models.Invoice, error)
}

// WebsiteChecker проверяет лицензию сайта у внешнего центра.
type WebsiteChecker interface {
	CheckWebsiteLicense(ctx context.Context, key, siteURL, clientName string) (licenseauthority.WebsiteLicenseResult, error)
}

// Cache кеширует вердикты центра лицензирования сайтов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// RegisterRequest параметры регистрации.
type RegisterRequest struct {
	Email             string
	Password          string
	Phone             string
	WebsiteURL        string
	WebsiteName       string
	WebsiteLicenseKey string
}

// RegistrationResult исход регистрации: заявка создана, счет выписан.
type RegistrationResult struct {
	PendingUserID int64
	InvoiceNumber string
	PaymentURL    string
}

// LoginResult исход логина: либо токен сессии, либо требование оплаты
// со ссылкой на новый счет.
type LoginResult struct {
	Token           string
	PaymentRequired bool
	InvoiceNumber   string
	PaymentURL      string
}

// Service реализует подписочный шлюз.
type Service struct {
	users    UserRepository
	pending  PendingUserRepository
	websites WebsiteRepository
	invoices InvoiceCreator
	checker  WebsiteChecker
	cache    Cache
	jwtMaker jwt.Maker
	billing  config.Billing
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(users UserRepository, pending PendingUserRepository, websites WebsiteRepository,
	invoices InvoiceCreator, checker WebsiteChecker, cache Cache, jwtMaker jwt.Maker,
	billing config.Billing, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		pending:  pending,
		websites: websites,
		invoices: invoices,
		checker:  checker,
		cache:    cache,
		jwtMaker: jwtMaker,
		billing:  billing,
		log:      log,
	}
}

// RegisterApplicant проверяет сайт, создает или перезаписывает заявку
// и всегда выписывает свежий initial-счет. Пользователь не создается:
// это произойдет только после оплаты.
func (s *Service) RegisterApplicant(ctx context.Context, req RegisterRequest) (*RegistrationResult, error) {
	const op = "gate.RegisterApplicant"

	existing, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateOwner)
	}

	websiteID, err := s.ensureWebsite(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pendingID, err := s.pending.UpsertPendingUser(ctx, models.PendingUser{
		Email:        req.Email,
		PasswordHash: hashed,
		Phone:        req.Phone,
		WebsiteID:    &websiteID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inv, err := s.invoices.Create(ctx, invoice.Owner{PendingUserID: &pendingID},
		models.PurposeInitial, s.billing.InitialAmount, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("registration accepted, awaiting payment",
		slog.Int64("pending_user_id", pendingID),
		slog.String("invoice_number", inv.InvoiceNumber))

	return &RegistrationResult{
		PendingUserID: pendingID,
		InvoiceNumber: inv.InvoiceNumber,
		PaymentURL:    inv.PaymentURL,
	}, nil
}

// ensureWebsite находит или создает сайт и проверяет его лицензию.
// Вердикт центра кешируется, недоступность центра не блокирует
// регистрацию: сайт остается pending до фоновой сверки.
func (s *Service) ensureWebsite(ctx context.Context, req RegisterRequest) (int64, error) {
	website, err := s.websites.GetWebsiteByURL(ctx, req.WebsiteURL)
	if err != nil {
		return 0, err
	}

	verdict, checkErr := s.checkWebsiteCached(ctx, req.WebsiteLicenseKey, req.WebsiteURL, req.WebsiteName)
	if checkErr == nil && !verdict.IsValid {
		if website != nil {
			_ = s.websites.UpdateWebsiteStatus(ctx, website.ID, models.WebsiteRejected)
		}
		return 0, models.ErrWebsiteLicenseInvalid
	}

	status := models.WebsitePending
	if checkErr == nil && verdict.IsValid {
		status = models.WebsiteApproved
	}

	if website == nil {
		id, err := s.websites.CreateWebsite(ctx, models.Website{
			URL:        req.WebsiteURL,
			Name:       req.WebsiteName,
			Status:     status,
			LicenseKey: req.WebsiteLicenseKey,
		})
		if err != nil {
			return 0, err
		}
		return id, nil
	}

	if website.Status != status {
		if err := s.websites.UpdateWebsiteStatus(ctx, website.ID, status); err != nil {
			return 0, err
		}
	}
	return website.ID, nil
}

func (s *Service) checkWebsiteCached(ctx context.Context, key, siteURL, clientName string) (licenseauthority.WebsiteLicenseResult, error) {
	cacheKey := "website-license:" + siteURL
	var cached licenseauthority.WebsiteLicenseResult
	if found, err := s.cache.Get(cacheKey, &cached); err == nil && found {
		return cached, nil
	}

	verdict, err := s.checker.CheckWebsiteLicense(ctx, key, siteURL, clientName)
	if err != nil {
		return verdict, err
	}
	if cacheErr := s.cache.Set(cacheKey, verdict, 10*time.Minute); cacheErr != nil {
		s.log.Warn("failed to cache website license verdict", sl.Err(cacheErr))
	}
	return verdict, nil
}

// LoginOrInvoice проверяет учетные данные и вычисляет фактическое право
// доступа. Расхождение статуса и даты подписки лечится на месте: статус
// поднимается до active при живой дате или опускается до expired при
// истекшей — во втором случае вместо токена выписывается renewal-счет.
func (s *Service) LoginOrInvoice(ctx context.Context, email, rawPassword string) (*LoginResult, error) {
	const op = "gate.LoginOrInvoice"

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return s.loginPending(ctx, email, rawPassword)
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}

	now := time.Now().UTC()
	subscriptionValid := user.SubscriptionUntil == nil || user.SubscriptionUntil.After(now)

	switch {
	case user.LicenseStatus == models.LicenseActive && subscriptionValid:
		// Право доступа подтверждено
	case subscriptionValid:
		// Дата жива, статус отстал — поднимаем до active
		if err := s.users.SetLicenseStatus(ctx, user.ID, models.LicenseActive); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("license status self-healed to active", slog.Int64("user_id", user.ID))
	default:
		// Подписка истекла: фиксируем expired и выписываем renewal-счет
		if user.LicenseStatus != models.LicenseExpired {
			if err := s.users.SetLicenseStatus(ctx, user.ID, models.LicenseExpired); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		inv, err := s.invoices.Create(ctx, invoice.Owner{UserID: &user.ID},
			models.PurposeRenewal, s.billing.RenewalAmount, user.Phone)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("subscription expired, renewal invoice issued",
			slog.Int64("user_id", user.ID), slog.String("invoice_number", inv.InvoiceNumber))
		return &LoginResult{
			PaymentRequired: true,
			InvoiceNumber:   inv.InvoiceNumber,
			PaymentURL:      inv.PaymentURL,
		}, nil
	}

	token, err := s.jwtMaker.GenerateToken(user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &LoginResult{Token: token}, nil
}

// loginPending обрабатывает логин неактивированной заявки: пароль
// проверяется по сохраненному хэшу, счет выписывается заново,
// токен не выдается никогда.
func (s *Service) loginPending(ctx context.Context, email, rawPassword string) (*LoginResult, error) {
	const op = "gate.loginPending"

	pu, err := s.pending.GetPendingUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pu == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	if err := password.CompareHash(pu.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}

	inv, err := s.invoices.Create(ctx, invoice.Owner{PendingUserID: &pu.ID},
		models.PurposeInitial, s.billing.InitialAmount, pu.Phone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("unpromoted account login, fresh invoice issued",
		slog.Int64("pending_user_id", pu.ID), slog.String("invoice_number", inv.InvoiceNumber))

	return &LoginResult{
		PaymentRequired: true,
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentURL:      inv.PaymentURL,
	}, nil
}

// DaysLeft возвращает число оставшихся оплаченных дней: 0 для истекшей
// подписки, -1 для подписки без даты окончания.
func (s *Service) DaysLeft(ctx context.Context, userID int64) (int, error) {
	const op = "gate.DaysLeft"

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if user.SubscriptionUntil == nil {
		return -1, nil
	}
	left := time.Until(*user.SubscriptionUntil)
	if left <= 0 {
		return 0, nil
	}
	return int(left.Hours()/24) + 1, nil
}
