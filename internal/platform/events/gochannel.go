package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/google/uuid"
)

// GoChannel is an in-process bus on watermill's GoChannel pub/sub.
type GoChannel struct {
	pubsub *gochannel.GoChannel
	log    platform.Logger

	mu     sync.Mutex
	closed bool
}

func NewGoChannel(log platform.Logger) *GoChannel {
	if log == nil {
		log = platform.NewNoopLogger()
	}
	return &GoChannel{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            64,
				Persistent:                     false,
				BlockPublishUntilSubscriberAck: false,
			},
			NewWatermillLogger(log),
		),
		log: log,
	}
}

func (g *GoChannel) Publish(ctx context.Context, topic string, payload []byte) error {
	if g.isClosed() {
		return ErrClosed
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if id := platform.RequestIDFrom(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}
	if err := g.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe blocks, handing each message to handler until ctx is done.
// A handler error nacks the message so it is redelivered.
func (g *GoChannel) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	if g.isClosed() {
		return ErrClosed
	}
	messages, err := g.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			msgCtx := platform.WithRequestID(ctx, msg.Metadata.Get("request_id"))
			if err := handler(msgCtx, msg.Payload); err != nil {
				g.log.Error("event handler failed", "topic", topic, "message_id", msg.UUID, "error", err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

func (g *GoChannel) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()
	return g.pubsub.Close()
}

func (g *GoChannel) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// watermillLogger routes watermill's logging through platform.Logger.
type watermillLogger struct {
	log platform.Logger
}

// NewWatermillLogger adapts log to watermill.LoggerAdapter.
func NewWatermillLogger(log platform.Logger) watermill.LoggerAdapter {
	return watermillLogger{log: log}
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log.Error(append([]any{msg, "error", err}, fieldArgs(fields)...)...)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Info(append([]any{msg}, fieldArgs(fields)...)...)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug(append([]any{msg}, fieldArgs(fields)...)...)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Debug(append([]any{msg}, fieldArgs(fields)...)...)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: l.log.With(fieldArgs(fields)...)}
}

func fieldArgs(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
