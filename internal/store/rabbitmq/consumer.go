package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc runs one job. A returned error sends the delivery to the retry
// queue until MaxRetries is reached, then to the dead-letter queue.
// Deliveries cut short by shutdown go back to the main queue.
type HandlerFunc func(ctx context.Context, jobID string) error

type ConsumerConfig struct {
	URL         string
	Queue       string
	Concurrency int
	MaxRetries  int
	// RetryDelay in milliseconds
	RetryDelay int64
}

type Consumer struct {
	cfg    ConsumerConfig
	log    *slog.Logger
	handle HandlerFunc
}

func NewConsumer(cfg ConsumerConfig, log *slog.Logger, handle HandlerFunc) *Consumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Concurrency > 50 {
		cfg.Concurrency = 50
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Consumer{cfg: cfg, log: log, handle: handle}
}

// acker is the part of amqp.Delivery the pool needs.
type acker interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type republishFunc func(ctx context.Context, body []byte, retries int) error

// Run consumes until ctx is cancelled, then drains in-flight jobs.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbit dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	if err := declareQueues(ch, c.cfg.Queue, c.cfg.RetryDelay); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	//  strict concurrency control
	if err := ch.Qos(c.cfg.Concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	var pubMu sync.Mutex
	republish := func(ctx context.Context, body []byte, retries int) error {
		pubMu.Lock()
		defer pubMu.Unlock()
		return ch.PublishWithContext(ctx, "", retryQueue(c.cfg.Queue), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{retryHeader: int32(retries)},
			Body:         body,
			Timestamp:    time.Now(),
		})
	}

	c.log.Info("worker started", "queue", c.cfg.Queue, "concurrency", c.cfg.Concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, c.cfg.Concurrency*2)

	var wg sync.WaitGroup
	wg.Add(c.cfg.Concurrency)
	for i := 0; i < c.cfg.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d.Body, retryCount(d.Headers), &d, republish)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			c.log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, body []byte, retries int, d acker, republish republishFunc) {
	log := c.log.With("worker", workerID)

	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil || m.JobID == "" {
		log.Warn("bad message", "error", err)
		_ = d.Nack(false, false)
		return
	}
	log = log.With("job_id", m.JobID)

	if ctx.Err() != nil {
		// shutting down: hand the message back untouched
		_ = d.Nack(false, true)
		return
	}

	start := time.Now()
	err := c.handle(ctx, m.JobID)
	if err == nil {
		log.Info("job done", "cost", time.Since(start))
		if err := d.Ack(false); err != nil {
			log.Error("ack failed", "error", err)
		}
		return
	}

	if ctx.Err() != nil {
		// interrupted by shutdown, not a failure of the job itself
		log.Warn("job interrupted, requeueing", "cost", time.Since(start), "error", err)
		_ = d.Nack(false, true)
		return
	}

	if retries < c.cfg.MaxRetries {
		pubErr := republish(ctx, body, retries+1)
		if pubErr == nil {
			log.Warn("job failed, retrying", "attempt", retries+1, "cost", time.Since(start), "error", err)
			_ = d.Ack(false)
			return
		}
		log.Error("retry publish failed", "error", pubErr)
	}
	log.Error("job failed", "cost", time.Since(start), "error", err)
	_ = d.Nack(false, false)
}
