package item

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/aquamarinepk/cruddemo/internal/platform/events"
)

const (
	EventCreated = "item.created"
	EventUpdated = "item.updated"
	EventDeleted = "item.deleted"
	EventPurged  = "item.purged"

	DefaultTopic = "items"
)

// Event is published after every successful mutation. IDs lists the
// affected items; it is empty for a purge.
type Event struct {
	Type       string    `json:"type"`
	IDs        []int64   `json:"ids,omitempty"`
	Item       *Item     `json:"item,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// eventPublisher encodes events onto one topic. Publish failures are
// logged and never fail the mutation that caused them.
type eventPublisher struct {
	pub   events.Publisher
	topic string
	log   platform.Logger
}

func (p eventPublisher) publish(ctx context.Context, ev Event) {
	if p.pub == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("encode item event", "type", ev.Type, "error", err)
		return
	}
	if err := p.pub.Publish(ctx, p.topic, data); err != nil {
		p.log.Error("publish item event", "type", ev.Type, "topic", p.topic, "error", err)
	}
}

// DecodeEvent reads an Event published by the service.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}

// AuditLog subscribes to the item topic and logs every event it sees.
type AuditLog struct {
	sub   events.Subscriber
	topic string
	log   platform.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewAuditLog(sub events.Subscriber, topic string, log platform.Logger) *AuditLog {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = platform.NewNoopLogger()
	}
	return &AuditLog{sub: sub, topic: topic, log: log}
}

func (a *AuditLog) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		err := a.sub.Subscribe(runCtx, a.topic, a.handle)
		if err != nil && runCtx.Err() == nil {
			a.log.Error("item audit subscription ended", "topic", a.topic, "error", err)
		}
	}()
	return nil
}

func (a *AuditLog) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AuditLog) handle(ctx context.Context, msg []byte) error {
	ev, err := DecodeEvent(msg)
	if err != nil {
		a.log.Error("decode item event", "error", err)
		return nil
	}
	a.log.Info("item event", "type", ev.Type, "ids", ev.IDs, "request_id", platform.RequestIDFrom(ctx))
	return nil
}
