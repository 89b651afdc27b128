package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// NotificationsExchange имя exchange для всех уведомлений подсистемы.
const NotificationsExchange = "notifications"

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Очереди уведомлений и их ключи маршрутизации.
var (
	QueuePurchase = QueueConfig{QueueName: "notifications.purchase", RoutingKey: "purchase"}
	QueueExpiring = QueueConfig{QueueName: "notifications.expiring", RoutingKey: "expiring"}
	QueueExpired  = QueueConfig{QueueName: "notifications.expired", RoutingKey: "expired"}
	QueueAlerts   = QueueConfig{QueueName: "notifications.alerts", RoutingKey: "alert"}
)

// GetNotificationQueues возвращает конфигурацию всех очередей уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{QueuePurchase, QueueExpiring, QueueExpired, QueueAlerts}
}

// SetupChannel открывает канал, объявляет exchange и привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	err = ch.ExchangeDeclare(
		NotificationsExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			NotificationsExchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
