package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"eventreg/pkg/logger"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	SessionTimeout    time.Duration
	Heartbeat         time.Duration
	MaxProcessingTime time.Duration
	OffsetOldest      bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		GroupID:           "eventreg-notification-workers",
		Topics:            []string{"eventreg.notifications"},
		SessionTimeout:    30 * time.Second,
		Heartbeat:         3 * time.Second,
		MaxProcessingTime: time.Minute,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
	}
}

func (c ConsumerConfig) sarama() *sarama.Config {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Session.Timeout = c.SessionTimeout
	sc.Consumer.Group.Heartbeat.Interval = c.Heartbeat
	sc.Consumer.MaxProcessingTime = c.MaxProcessingTime
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = time.Second
	if c.OffsetOldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc
}

// Consumer runs a pool of consumer-group members that turn messages into email.
type Consumer struct {
	cfg     ConsumerConfig
	handler *handler
	groups  []sarama.ConsumerGroup
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *logger.Logger
}

func NewConsumer(cfg ConsumerConfig, mailer Mailer, log *logger.Logger) *Consumer {
	log = log.WithComponent("notification-consumer")
	return &Consumer{
		cfg:     cfg,
		handler: &handler{mailer: mailer, maxRetries: cfg.MaxRetries, backoff: cfg.RetryBackoff, log: log},
		log:     log,
	}
}

// Start joins the group with workers members. Each member gets its share of
// partitions from the broker.
func (c *Consumer) Start(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	ctx, c.cancel = context.WithCancel(ctx)

	for i := 0; i < workers; i++ {
		group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, c.cfg.sarama())
		if err != nil {
			c.cancel()
			c.closeGroups()
			return fmt.Errorf("failed to create consumer group: %w", err)
		}
		c.groups = append(c.groups, group)

		c.wg.Add(2)
		go c.run(ctx, i, group)
		go c.drainErrors(group)
	}

	c.log.Info("notification consumers started", "workers", workers, "topics", c.cfg.Topics)
	return nil
}

func (c *Consumer) run(ctx context.Context, worker int, group sarama.ConsumerGroup) {
	defer c.wg.Done()
	for {
		if err := group.Consume(ctx, c.cfg.Topics, c.handler); err != nil {
			c.log.WithError(err).Warn("consume failed", "worker", worker)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) drainErrors(group sarama.ConsumerGroup) {
	defer c.wg.Done()
	for err := range group.Errors() {
		c.log.WithError(err).Warn("consumer group error")
	}
}

func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.closeGroups()
	c.wg.Wait()
	c.log.Info("notification consumers stopped")
	return err
}

func (c *Consumer) closeGroups() error {
	var first error
	for _, g := range c.groups {
		if err := g.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close consumer group: %w", err)
		}
	}
	c.groups = nil
	return first
}

type handler struct {
	mailer     Mailer
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

func (h *handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(session.Context(), message.Value); err != nil {
				h.log.WithError(err).Error("notification dropped", "partition", message.Partition, "offset", message.Offset)
			}
			// Marked either way: a poison message must not stall the partition.
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *handler) process(ctx context.Context, value []byte) error {
	var msg Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	if msg.RecipientEmail == "" {
		return nil
	}

	htmlBody, textBody, err := Render(&msg)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = h.mailer.Send(ctx, msg.RecipientEmail, msg.Subject, htmlBody, textBody)
		if err == nil || attempt >= h.maxRetries {
			break
		}
		delay := h.backoff * time.Duration(1<<attempt)
		h.log.Warn("email failed, retrying", "notification_id", msg.ID, "attempt", attempt+1, "delay", delay.String())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("email to %s failed after %d attempts: %w", msg.RecipientEmail, h.maxRetries+1, err)
	}

	h.log.Info("notification sent", "type", msg.Type, "notification_id", msg.ID)
	return nil
}
