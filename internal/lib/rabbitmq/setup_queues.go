package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// QueueConfig описывает очередь и ключ маршрутизации для нее.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди событий лицензирования.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.payment-settled", RoutingKey: "payment.settled"},
		{QueueName: "notification.license-suspended", RoutingKey: "license.suspended"},
		{QueueName: "notification.activation-failed", RoutingKey: "activation.failed"},
		// website.recheck зарезервирован для внешней перепроверки владения сайтом
		{QueueName: "notification.website-recheck", RoutingKey: "website.recheck"},
	}
}

// SetupExchange объявляет exchange и привязывает к нему очереди уведомлений.
func SetupExchange(ch *amqp.Channel, exchange string) error {
	const op = "rabbitmq.SetupExchange"
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, q := range GetNotificationQueues() {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
