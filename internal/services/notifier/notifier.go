// Package notifier публикует события лицензирования в RabbitMQ.
// Канал уведомлений — fire-and-forget: ошибки публикации логируются
// и никогда не поднимаются к вызывающему.
package notifier

import (
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-licensing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/streadway/amqp"
)

// PaymentSettledEvent событие успешной оплаты счета.
type PaymentSettledEvent struct {
	InvoiceNumber string    `json:"invoice_number"`
	UserID        int64     `json:"user_id,omitempty"`
	Amount        int64     `json:"amount"`
	SettledAt     time.Time `json:"settled_at"`
}

// LicenseSuspendedEvent событие перевода лицензии в suspended фоновой сверкой.
type LicenseSuspendedEvent struct {
	UserID    int64  `json:"user_id"`
	OldStatus string `json:"old_status"`
}

// ActivationFailedEvent платеж записан, но активация не прошла —
// требуется ручная сверка оператором.
type ActivationFailedEvent struct {
	InvoiceNumber string `json:"invoice_number"`
	PendingUserID int64  `json:"pending_user_id"`
	Reason        string `json:"reason"`
}

// NotifierService отправляет события в exchange уведомлений.
type NotifierService struct {
	channel  *amqp.Channel
	exchange string
	log      *slog.Logger
}

// New создает новый экземпляр NotifierService. channel может быть nil —
// тогда события молча пропускаются (например, в тестах).
func New(channel *amqp.Channel, exchange string, log *slog.Logger) *NotifierService {
	return &NotifierService{
		channel:  channel,
		exchange: exchange,
		log:      log,
	}
}

// PaymentSettled сообщает об успешной оплате.
func (n *NotifierService) PaymentSettled(event PaymentSettledEvent) {
	n.publish("payment.settled", event)
}

// LicenseSuspended сообщает о приостановке лицензии.
func (n *NotifierService) LicenseSuspended(event LicenseSuspendedEvent) {
	n.publish("license.suspended", event)
}

// ActivationFailed сообщает о сбое активации после оплаты.
func (n *NotifierService) ActivationFailed(event ActivationFailedEvent) {
	n.publish("activation.failed", event)
}

func (n *NotifierService) publish(routingKey string, event any) {
	if n.channel == nil {
		return
	}
	if err := rabbitmq.PublishMessage(n.channel, n.exchange, routingKey, event); err != nil {
		n.log.Error("failed to publish notification",
			slog.String("routing_key", routingKey), sl.Err(err))
	}
}
