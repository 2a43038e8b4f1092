// README: RabbitMQ connection for the completion event stream.
package infra

import amqp "github.com/rabbitmq/amqp091-go"

func NewRabbit(url string) (*amqp.Connection, error) {
	return amqp.Dial(url)
}
