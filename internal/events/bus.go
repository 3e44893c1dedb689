// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/roastery/internal/logging"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// BusConfig configures the in-process bus.
type BusConfig struct {
	// OutputBuffer is the per-subscriber channel buffer.
	OutputBuffer int64
}

// DefaultBusConfig returns a buffer large enough for one run's stage events.
func DefaultBusConfig() BusConfig {
	return BusConfig{OutputBuffer: 64}
}

// Bus publishes and subscribes to lifecycle events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus. A nil logger routes Watermill logs through the
// global zerolog logger.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger("events"))
	}
	if cfg.OutputBuffer <= 0 {
		cfg.OutputBuffer = DefaultBusConfig().OutputBuffer
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.OutputBuffer,
		}, logger),
		logger: logger,
	}
}

// Publish sends a raw message to topic.
func (b *Bus) Publish(_ context.Context, topic string, msg *message.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	return b.pubsub.Publish(topic, msg)
}

// PublishStage publishes a stage outcome.
func (b *Bus) PublishStage(ctx context.Context, e StageEvent) error {
	data, err := encode(&e, &e.EventID)
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.EventID, data)
	msg.Metadata.Set("run_id", e.RunID)
	msg.Metadata.Set("stage", e.Stage)
	msg.Metadata.Set("status", e.Status)
	return b.Publish(ctx, TopicStage, msg)
}

// PublishRun publishes a finished run.
func (b *Bus) PublishRun(ctx context.Context, e RunEvent) error {
	data, err := encode(&e, &e.EventID)
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.EventID, data)
	msg.Metadata.Set("run_id", e.RunID)
	msg.Metadata.Set("status", e.Status)
	return b.Publish(ctx, TopicRun, msg)
}

// Subscribe returns a channel of messages for topic. The channel is closed
// when ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts the bus down. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// Handler consumes one topic until its context is cancelled.
type Handler struct {
	bus    *Bus
	topic  string
	handle func(ctx context.Context, msg *message.Message) error
}

// NewHandler creates a handler for topic.
func (b *Bus) NewHandler(topic string, fn func(ctx context.Context, msg *message.Message) error) *Handler {
	return &Handler{bus: b, topic: topic, handle: fn}
}

// RunHandler returns a handler that decodes RunEvents.
func (b *Bus) RunHandler(fn func(ctx context.Context, e *RunEvent) error) *Handler {
	return b.NewHandler(TopicRun, func(ctx context.Context, msg *message.Message) error {
		e, err := DecodeRun(msg.Payload)
		if err != nil {
			return err
		}
		return fn(ctx, e)
	})
}

// StageHandler returns a handler that decodes StageEvents.
func (b *Bus) StageHandler(fn func(ctx context.Context, e *StageEvent) error) *Handler {
	return b.NewHandler(TopicStage, func(ctx context.Context, msg *message.Message) error {
		e, err := DecodeStage(msg.Payload)
		if err != nil {
			return err
		}
		return fn(ctx, e)
	})
}

// Run subscribes and processes messages until ctx is cancelled. Every
// message is acked after handling; handler errors are logged and never
// redelivered.
func (h *Handler) Run(ctx context.Context) error {
	messages, err := h.bus.Subscribe(ctx, h.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", h.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := h.handle(ctx, msg); err != nil {
				h.bus.logger.Error("Event handling failed", err, watermill.LogFields{
					"message_uuid": msg.UUID,
					"topic":        h.topic,
				})
			}
			msg.Ack()
		}
	}
}
