// Package invoice содержит бизнес-логику жизненного цикла счетов:
// выписку с дедупликацией, закрытие по данным платежного шлюза и
// запуск активации после успешной оплаты.
package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
	"github.com/magabrotheeeer/subscription-licensing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/activation"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/notifier"
)

// Owner владелец счета: ровно одно из полей должно быть заполнено.
type Owner struct {
	UserID        *int64
	PendingUserID *int64
}

// Состояния результата закрытия счета.
const (
	StateSettled          = "settled"
	StateAlreadySettled   = "already_settled"
	StatePending          = "pending"
	StateFailed           = "failed"
	StateActivationFailed = "activation_failed"
)

// SettlementResult итог попытки закрыть счет. При StateActivationFailed
// платеж записан, но активация не прошла — случай для ручной сверки,
// он никогда не маскируется под успех или обычную ошибку.
type SettlementResult struct {
	State         string
	InvoiceNumber string
	UserID        int64
	LicenseKey    string
}

// InvoiceRepository описывает контракт хранилища счетов.
type InvoiceRepository interface {
	// CancelPendingInvoices отменяет pending-счета владельца.
	CancelPendingInvoices(ctx context.Context, userID, pendingUserID *int64) error
	// CreateInvoice сохраняет новый pending-счет.
	CreateInvoice(ctx context.Context, inv models.Invoice) (int64, error)
	// SetInvoicePaymentURL сохраняет ссылку на оплату и сырой ответ шлюза.
	SetInvoicePaymentURL(ctx context.Context, id int64, paymentURL string, gatewayResponse []byte) error
	// GetInvoiceByNumber возвращает счет по номеру.
	GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error)
	// MarkInvoiceFailed переводит pending-счет в failed.
	MarkInvoiceFailed(ctx context.Context, number string) error
	// SettleInvoicePaid закрывает счет как оплаченный в одной транзакции.
	SettleInvoicePaid(ctx context.Context, number, providerTxnID string, amount int64, rawResponse []byte) (*models.Invoice, bool, error)
}

// Gateway описывает платежный шлюз.
type Gateway interface {
	CreateOrder(ctx context.Context, req paymentgateway.CreateOrderRequest) (*paymentgateway.CreateOrderResponse, error)
	CheckOrderStatus(ctx context.Context, orderID string) (*paymentgateway.OrderStatusResponse, error)
}

// Activator запускает активацию заявки или продление подписки после оплаты.
type Activator interface {
	Activate(ctx context.Context, pendingUserID, invoiceID int64, durationDays int) (*activation.Result, error)
	Extend(ctx context.Context, userID int64, durationDays int) (*activation.Result, error)
}

// Notifier отправляет события исходящих уведомлений (fire-and-forget).
type Notifier interface {
	PaymentSettled(event notifier.PaymentSettledEvent)
	ActivationFailed(event notifier.ActivationFailedEvent)
}

// Service реализует жизненный цикл счетов.
type Service struct {
	repo         InvoiceRepository
	gateway      Gateway
	activator    Activator
	notifier     Notifier
	redirectURL  string
	durationDays int
	log          *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo InvoiceRepository, gateway Gateway, activator Activator, notif Notifier,
	redirectURL string, durationDays int, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		gateway:      gateway,
		activator:    activator,
		notifier:     notif,
		redirectURL:  redirectURL,
		durationDays: durationDays,
		log:          log,
	}
}

// mintInvoiceNumber выпускает уникальный человекочитаемый номер счета.
func mintInvoiceNumber(now time.Time) string {
	entropy := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), entropy)
}

// Create выписывает владельцу новый счет. Любой прежний pending-счет
// владельца предварительно отменяется. Если шлюз не выдал ссылку на оплату,
// счет остается pending и возвращается models.ErrPaymentProvider.
func (s *Service) Create(ctx context.Context, owner Owner, purpose string, amount int64, customerMobile string) (*models.Invoice, error) {
	const op = "invoice.Create"

	if err := s.repo.CancelPendingInvoices(ctx, owner.UserID, owner.PendingUserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inv := models.Invoice{
		InvoiceNumber: mintInvoiceNumber(time.Now().UTC()),
		UserID:        owner.UserID,
		PendingUserID: owner.PendingUserID,
		Purpose:       purpose,
		Amount:        amount,
		Status:        models.InvoicePending,
	}
	id, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	inv.ID = id

	s.log.Info("invoice created",
		slog.String("invoice_number", inv.InvoiceNumber),
		slog.String("purpose", purpose), slog.Int64("amount", amount))

	orderResp, err := s.gateway.CreateOrder(ctx, paymentgateway.CreateOrderRequest{
		Amount:         amount,
		CustomerMobile: customerMobile,
		OrderID:        inv.InvoiceNumber,
		RedirectURL:    s.redirectURL,
		Remarks:        purpose,
	})
	if err != nil || orderResp.PaymentURL == "" {
		// Счет остается pending: деньги не потеряны, вызывающий может повторить
		if err != nil {
			s.log.Error("gateway order creation failed", sl.Err(err))
		} else {
			s.log.Error("gateway returned empty payment url",
				slog.String("invoice_number", inv.InvoiceNumber))
		}
		return nil, fmt.Errorf("%s: %w", op, models.ErrPaymentProvider)
	}

	if err := s.repo.SetInvoicePaymentURL(ctx, id, orderResp.PaymentURL, orderResp.Raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	inv.PaymentURL = orderResp.PaymentURL
	inv.GatewayResponse = orderResp.Raw
	return &inv, nil
}

// Settle закрывает счет по его номеру. Истина о платеже всегда берется
// из check-order-status шлюза, параметрам редиректа не доверяем.
// Повторный вызов для оплаченного счета — это AlreadySettled без побочных
// эффектов. Обращение к шлюзу выполняется до открытия транзакции хранилища.
func (s *Service) Settle(ctx context.Context, invoiceNumber string) (*SettlementResult, error) {
	const op = "invoice.Settle"
	log := s.log.With(slog.String("op", op), slog.String("invoice_number", invoiceNumber))

	inv, err := s.repo.GetInvoiceByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if inv.Status == models.InvoicePaid {
		log.Info("invoice already settled")
		return &SettlementResult{State: StateAlreadySettled, InvoiceNumber: invoiceNumber}, nil
	}

	statusResp, err := s.gateway.CheckOrderStatus(ctx, invoiceNumber)
	if err != nil {
		log.Error("gateway status check failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, models.ErrPaymentProvider)
	}

	switch statusResp.TxnStatus {
	case paymentgateway.TxnCompleted:
		return s.settleCompleted(ctx, log, inv, statusResp)
	case paymentgateway.TxnPending:
		log.Info("payment still pending at gateway")
		return &SettlementResult{State: StatePending, InvoiceNumber: invoiceNumber}, nil
	default:
		log.Info("payment failed at gateway", slog.String("txn_status", statusResp.TxnStatus))
		if err := s.repo.MarkInvoiceFailed(ctx, invoiceNumber); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &SettlementResult{State: StateFailed, InvoiceNumber: invoiceNumber}, nil
	}
}

func (s *Service) settleCompleted(ctx context.Context, log *slog.Logger, inv *models.Invoice, statusResp *paymentgateway.OrderStatusResponse) (*SettlementResult, error) {
	const op = "invoice.settleCompleted"

	paidInv, alreadyPaid, err := s.repo.SettleInvoicePaid(ctx,
		inv.InvoiceNumber, statusResp.TxnID, statusResp.Amount, statusResp.Raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if alreadyPaid {
		log.Info("invoice already settled, duplicate callback")
		return &SettlementResult{State: StateAlreadySettled, InvoiceNumber: inv.InvoiceNumber}, nil
	}
	log.Info("invoice settled", slog.String("txn_id", statusResp.TxnID))

	result := &SettlementResult{State: StateSettled, InvoiceNumber: inv.InvoiceNumber}

	// Активация идет отдельной транзакцией после фиксации платежа:
	// сбой активации не может откатить записанные деньги.
	switch {
	case paidInv.PendingUserID != nil:
		act, err := s.activator.Activate(ctx, *paidInv.PendingUserID, paidInv.ID, s.durationDays)
		if err != nil {
			log.Error("payment recorded but activation failed", sl.Err(err))
			s.notifier.ActivationFailed(notifier.ActivationFailedEvent{
				InvoiceNumber: inv.InvoiceNumber,
				PendingUserID: *paidInv.PendingUserID,
				Reason:        err.Error(),
			})
			result.State = StateActivationFailed
			return result, nil
		}
		result.UserID = act.UserID
		result.LicenseKey = act.LicenseKey
	case paidInv.UserID != nil:
		act, err := s.activator.Extend(ctx, *paidInv.UserID, s.durationDays)
		if err != nil {
			log.Error("payment recorded but extension failed", sl.Err(err))
			s.notifier.ActivationFailed(notifier.ActivationFailedEvent{
				InvoiceNumber: inv.InvoiceNumber,
				Reason:        err.Error(),
			})
			result.State = StateActivationFailed
			return result, nil
		}
		result.UserID = act.UserID
		result.LicenseKey = act.LicenseKey
	}

	s.notifier.PaymentSettled(notifier.PaymentSettledEvent{
		InvoiceNumber: inv.InvoiceNumber,
		UserID:        result.UserID,
		Amount:        statusResp.Amount,
		SettledAt:     time.Now().UTC(),
	})
	return result, nil
}

// Status возвращает счет по номеру для read-only запросов статуса.
func (s *Service) Status(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	return s.repo.GetInvoiceByNumber(ctx, invoiceNumber)
}
