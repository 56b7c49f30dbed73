package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

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

// ActivationPublisher публикует события активации в очередь уведомлений.
type ActivationPublisher struct {
	ch *amqp.Channel
}

// NewActivationPublisher создает новый экземпляр ActivationPublisher.
func NewActivationPublisher(ch *amqp.Channel) *ActivationPublisher {
	return &ActivationPublisher{ch: ch}
}

// PublishActivation отправляет событие активации пакета.
func (p *ActivationPublisher) PublishActivation(event models.ActivationEvent) error {
	return PublishMessage(p.ch, notificationExchange, ActivationRoutingKey, event)
}
