package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/segmentio/kafka-go"
)

// Kafka publishes with one shared writer and consumes with a reader per
// subscription.
type Kafka struct {
	brokers []string
	groupID string
	writer  *kafka.Writer
	log     platform.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
}

func NewKafka(brokers []string, groupID string, log platform.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	if log == nil {
		log = platform.NewNoopLogger()
	}
	if groupID == "" {
		groupID = "cruddemo"
	}
	return &Kafka{
		brokers: brokers,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		log: log,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, payload []byte) error {
	if k.isClosed() {
		return ErrClosed
	}
	msg := kafka.Message{Topic: topic, Value: payload}
	if id := platform.RequestIDFrom(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "request_id", Value: []byte(id)})
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe blocks until ctx is done. Offsets are committed only after
// handler succeeds.
func (k *Kafka) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  k.groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		_ = reader.Close()
		return ErrClosed
	}
	k.readers = append(k.readers, reader)
	k.mu.Unlock()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("kafka fetch from %s: %w", topic, err)
		}
		msgCtx := ctx
		for _, h := range msg.Headers {
			if h.Key == "request_id" {
				msgCtx = platform.WithRequestID(ctx, string(h.Value))
			}
		}
		if err := handler(msgCtx, msg.Value); err != nil {
			k.log.Error("event handler failed", "topic", topic, "offset", msg.Offset, "error", err)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("kafka commit on %s: %w", topic, err)
		}
	}
}

// HealthChecks reports the first broker as reachable for readiness.
func (k *Kafka) HealthChecks() platform.HealthChecks {
	return platform.HealthChecks{
		Readiness: map[string]platform.HealthCheck{
			"kafka": func(ctx context.Context) error {
				conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
				if err != nil {
					return err
				}
				return conn.Close()
			},
		},
	}
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	readers := k.readers
	k.readers = nil
	k.mu.Unlock()

	var err error
	for _, r := range readers {
		err = errors.Join(err, r.Close())
	}
	return errors.Join(err, k.writer.Close())
}

func (k *Kafka) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}
