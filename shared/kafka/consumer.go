// Package kafka wraps sarama consumer groups and producers with JSON typed
// handlers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// MessageHandler processes one consumed message.
//
// When shouldMark is false the offset is not committed, so the message is
// redelivered after a rebalance or restart.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key, value []byte) (shouldMark bool, err error)
}

// Consumer runs a consumer group over a single topic.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
	logger  *zap.Logger

	wg sync.WaitGroup
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  *zap.Logger
}

// NewSaramaConfig returns the consumer settings shared by every group.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// NewConsumer connects a consumer group.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Handler == nil {
		return nil, errors.New("kafka consumer requires a handler")
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, NewSaramaConfig())
	if err != nil {
		return nil, err
	}
	return NewConsumerFromGroup(group, cfg), nil
}

// NewConsumerFromGroup wraps an existing group.
func NewConsumerFromGroup(group sarama.ConsumerGroup, cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		logger:  logger.With(zap.String("topic", cfg.Topic), zap.String("group", cfg.GroupID)),
	}
}

// Start consumes in the background until ctx is canceled. It returns once
// the first session is set up, or with ctx's error if that never happens.
func (c *Consumer) Start(ctx context.Context) error {
	ready := make(chan struct{})
	handler := &groupHandler{consumer: c, ready: ready}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
					return
				}
				c.logger.Error("consume failed", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	select {
	case <-ready:
		c.logger.Info("kafka consumer started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close leaves the group and waits for the background loops.
func (c *Consumer) Close() error {
	c.logger.Info("closing kafka consumer")
	err := c.group.Close()
	c.wg.Wait()
	return err
}

type groupHandler struct {
	consumer *Consumer
	ready    chan struct{}
	once     sync.Once
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	logger := h.consumer.logger
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			logger.Debug("message received",
				zap.Int32("partition", message.Partition),
				zap.Int64("offset", message.Offset),
				zap.ByteString("key", message.Key),
			)

			shouldMark, err := h.consumer.handler.HandleMessage(session.Context(), message.Key, message.Value)
			if err != nil {
				logger.Error("message handling failed",
					zap.Int64("offset", message.Offset),
					zap.Error(err),
				)
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before processing.
type TypedMessageHandler[T any] struct {
	// Validate rejects messages that should not be processed.
	Validate func(msg *T) error
	// Process handles a decoded, valid message.
	Process func(ctx context.Context, msg *T) error
	// AlwaysMark commits undecodable and invalid messages so they are skipped.
	AlwaysMark bool
	Logger     *zap.Logger
}

// HandleMessage implements MessageHandler.
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, key, value []byte) (bool, error) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var msg T
	if err := json.Unmarshal(value, &msg); err != nil {
		logger.Warn("skipping undecodable message", zap.ByteString("key", key), zap.Error(err))
		return h.AlwaysMark, nil
	}
	if h.Validate != nil {
		if err := h.Validate(&msg); err != nil {
			logger.Warn("skipping invalid message", zap.ByteString("key", key), zap.Error(err))
			return h.AlwaysMark, nil
		}
	}
	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}
