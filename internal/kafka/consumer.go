// Package kafka publishes tracker events and consumes bulk grading messages.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/challenge75/internal/config"
	"github.com/challenge75/internal/domain"
)

// GradeHandler applies grades read from the stream
type GradeHandler interface {
	GradeBatch(ctx context.Context, grades []domain.GradeRequest) error
}

// Consumer reads grade messages from the grades topic and applies them in
// batches. Offsets are committed only once a batch has been handed over.
type Consumer struct {
	config  *config.KafkaConfig
	handler GradeHandler
	logger  *slog.Logger
	group   sarama.ConsumerGroup
	backoff time.Duration

	// how long Start waits for the first session before returning
	readyTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan struct{}
}

// NewConsumer joins the configured consumer group
func NewConsumer(cfg *config.KafkaConfig, handler GradeHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("joining consumer group %s: %w", cfg.GroupID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:       cfg,
		handler:      handler,
		logger:       logger,
		group:        group,
		backoff:      500 * time.Millisecond,
		readyTimeout: 10 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		ready:        make(chan struct{}),
	}, nil
}

// Start consumes in the background and returns once the first session is set
// up or the ready timeout passes, whichever is first. Consumption keeps
// retrying in the background after a timeout.
func (c *Consumer) Start() error {
	c.logger.Info("starting grade consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.GradesTopic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(2)
	go c.consumeLoop()
	go c.errorLoop()

	timer := time.NewTimer(c.readyTimeout)
	defer timer.Stop()

	select {
	case <-c.ready:
		c.logger.Info("grade consumer ready")
	case <-timer.C:
		c.logger.Warn("grade consumer not ready yet, still joining in background", "waited", c.readyTimeout)
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
	return nil
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()
	var once sync.Once
	for {
		handler := &consumerGroupHandler{consumer: c, setup: func() { once.Do(func() { close(c.ready) }) }}
		if err := c.group.Consume(c.ctx, []string{c.config.GradesTopic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.logger.Error("consume session ended", "error", err)
			if !c.sleep(c.backoff) {
				return
			}
		}
		// a rebalance ends the session; rejoin unless we are stopping
		if c.ctx.Err() != nil {
			return
		}
	}
}

// sleep waits for d and reports false if the consumer stopped meanwhile
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Consumer) errorLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Error("consumer group error", "error", err)
		}
	}
}

// Stop leaves the group after in-flight batches are flushed
func (c *Consumer) Stop() error {
	c.logger.Info("stopping grade consumer")
	c.cancel()
	c.wg.Wait()
	return c.group.Close()
}

// apply hands a batch to the handler, retrying up to RetryAttempts times
func (c *Consumer) apply(grades []domain.GradeRequest) error {
	attempts := c.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = c.handler.GradeBatch(ctx, grades)
		cancel()
		if err == nil {
			return nil
		}
		c.logger.Warn("grade batch failed", "error", err, "attempt", attempt, "batch_size", len(grades))
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * c.backoff)
		}
	}
	return err
}

// decodeGrade parses a message into a grade request
func decodeGrade(msg *sarama.ConsumerMessage) (domain.GradeRequest, error) {
	var grade GradeMessage
	if err := json.Unmarshal(msg.Value, &grade); err != nil {
		return domain.GradeRequest{}, err
	}
	req := grade.Request()
	if req.SubmissionID == "" {
		return domain.GradeRequest{}, errors.New("missing submission id")
	}
	return req, nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	setup    func()
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup()
	}
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim collects grades until the batch is full or the batch timeout
// fires, then applies them and marks their offsets
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	c := h.consumer
	grades := make([]domain.GradeRequest, 0, c.config.BatchSize)
	pending := make([]*sarama.ConsumerMessage, 0, c.config.BatchSize)
	timer := time.NewTimer(c.config.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(grades) > 0 {
			if err := c.apply(grades); err != nil {
				c.logger.Error("dropping grade batch", "error", err, "batch_size", len(grades))
			} else {
				c.logger.Debug("applied grade batch", "batch_size", len(grades))
			}
		}
		for _, msg := range pending {
			session.MarkMessage(msg, "")
		}
		grades = grades[:0]
		pending = pending[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			flush()
			return nil

		case <-timer.C:
			flush()
			timer.Reset(c.config.BatchTimeout)

		case msg, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}

			req, err := decodeGrade(msg)
			if err != nil {
				c.logger.Warn("skipping grade message",
					"error", err,
					"partition", msg.Partition,
					"offset", msg.Offset,
				)
				pending = append(pending, msg)
				continue
			}

			grades = append(grades, req)
			pending = append(pending, msg)
			if len(grades) >= c.config.BatchSize {
				flush()
				timer.Reset(c.config.BatchTimeout)
			}
		}
	}
}
