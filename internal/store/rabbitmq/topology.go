package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the body of every course job delivery.
type JobMessage struct {
	JobID string `json:"job_id"`
}

func retryQueue(queue string) string { return queue + ".retry" }
func deadQueue(queue string) string  { return queue + ".dlq" }

// declareQueues declares the main queue with its retry and dead-letter
// queues. Publisher and consumer must agree on these arguments.
func declareQueues(ch *amqp.Channel, queue string, retryDelay int64) error {
	// DLQ
	if _, err := ch.QueueDeclare(
		deadQueue(queue),
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQueue(queue),
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-message-ttl":             retryDelay,
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": deadQueue(queue),
		},
	)
	return err
}

const retryHeader = "x-retry-count"

// retryCount reads how many times a delivery has been sent back for retry.
func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
