package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anavictoriasalon/citabot/internal/channels/whatsapp"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

const (
	defaultConsumerCount = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxBatchSize         = 10
	deleteTimeout        = 5 * time.Second
)

// Consumer polls the inbound job queue and routes each message into the
// per-customer dispatcher.
type Consumer struct {
	queue      Queue
	dispatcher *Dispatcher
	logger     *logging.Logger

	cfg consumerConfig
	wg  sync.WaitGroup
}

type consumerConfig struct {
	consumers        int
	receiveWaitSecs  int
	receiveBatchSize int
}

// ConsumerOption customizes consumer behavior.
type ConsumerOption func(*consumerConfig)

// WithConsumerCount sets the number of concurrent polling goroutines.
func WithConsumerCount(count int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if count > 0 {
			cfg.consumers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if size <= 0 {
			return
		}
		if size > maxBatchSize {
			size = maxBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

func NewConsumer(queue Queue, dispatcher *Dispatcher, logger *logging.Logger, opts ...ConsumerOption) *Consumer {
	if queue == nil {
		panic("engine: queue cannot be nil")
	}
	if dispatcher == nil {
		panic("engine: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := consumerConfig{
		consumers:        defaultConsumerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		queue:      queue,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Publish encodes an inbound message onto the queue. The webhook handler
// calls this so HTTP acceptance and conversation processing stay decoupled.
func (c *Consumer) Publish(ctx context.Context, msg whatsapp.Inbound) error {
	body, err := encodeJob(msg)
	if err != nil {
		return err
	}
	return c.queue.Send(ctx, body)
}

// Start launches the polling goroutines.
func (c *Consumer) Start(ctx context.Context) {
	for i := 0; i < c.cfg.consumers; i++ {
		c.wg.Add(1)
		go c.run(ctx, i+1)
	}
}

// Wait blocks until all polling goroutines exit.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context, consumerID int) {
	defer c.wg.Done()
	c.logger.Debug("inbound consumer started", "consumer_id", consumerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("inbound consumer stopping", "consumer_id", consumerID)
			return
		default:
		}

		messages, err := c.queue.Receive(ctx, c.cfg.receiveBatchSize, c.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("failed to receive inbound jobs", "error", err, "consumer_id", consumerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			c.handleMessage(msg)
		}
	}
}

func (c *Consumer) handleMessage(msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		c.logger.Error("failed to decode inbound job", "error", err)
		c.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := c.dispatcher.Submit(job.Message); err != nil {
		// Closed dispatcher: leave the message on the queue for the next
		// process to pick up.
		c.logger.Warn("dispatcher rejected inbound job", "error", err, "job_id", job.ID)
		return
	}
	c.deleteMessage(msg.ReceiptHandle)
}

func (c *Consumer) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := c.queue.Delete(ctx, receiptHandle); err != nil {
		c.logger.Error("failed to delete inbound job", "error", err)
	}
}
