package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aquamarinepk/cruddemo/internal/platform"
)

// HandlerFunc processes an event message.
type HandlerFunc func(ctx context.Context, msg []byte) error

// Publisher publishes events to topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

// Subscriber subscribes to topics and processes events until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler HandlerFunc) error
}

// Bus is a publisher and subscriber that owns connections to close.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Options selects and configures a Bus.
type Options struct {
	Driver  string   `koanf:"driver"`
	Brokers []string `koanf:"brokers"`
	GroupID string   `koanf:"group"`
}

// New builds the bus named by opts.Driver: none, gochannel or kafka.
func New(opts Options, log platform.Logger) (Bus, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "none":
		return Noop{}, nil
	case "gochannel", "memory":
		return NewGoChannel(log), nil
	case "kafka":
		k, err := NewKafka(opts.Brokers, opts.GroupID, log)
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", opts.Driver)
	}
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error { return nil }

func (Noop) Subscribe(ctx context.Context, _ string, _ HandlerFunc) error {
	<-ctx.Done()
	return nil
}

func (Noop) Close() error { return nil }

var _ platform.PubSub = Bus(nil)
