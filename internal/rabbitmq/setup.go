package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// EventsExchange имя обменника, в который публикуются события ядра.
const EventsExchange = "leadpilot.events"

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetEventQueues возвращает очереди событий ядра и их ключи маршрутизации.
func GetEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "events.channel.connected", RoutingKey: "channel.connected"},
		{QueueName: "events.channel.disconnected", RoutingKey: "channel.disconnected"},
		{QueueName: "events.sync.completed", RoutingKey: "sync.completed"},
	}
}

// SetupChannel открывает канал, объявляет обменник событий и
// привязывает к нему переданные очереди.
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
		EventsExchange,
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
			EventsExchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
