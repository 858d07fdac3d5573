// Package rabbitmq содержит обвязку для публикации событий в RabbitMQ:
// подключение, объявление exchange и очередей, публикацию сообщений.
package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// Connect открывает соединение и канал RabbitMQ.
func Connect(addr string) (*amqp.Connection, *amqp.Channel, error) {
	const op = "rabbitmq.Connect"
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, ch, nil
}

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
