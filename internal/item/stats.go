package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/robfig/cron/v3"
)

const (
	DefaultStatsSchedule = "@every 30s"
	StoredGauge          = "items_stored"
)

type counter interface {
	Count(ctx context.Context) (int64, error)
}

// Stats periodically publishes how many items are stored.
type Stats struct {
	items    counter
	metrics  platform.Metrics
	log      platform.Logger
	schedule string
	cron     *cron.Cron
}

// NewStats validates schedule, which accepts standard five field specs
// and descriptors such as "@every 30s".
func NewStats(items counter, metrics platform.Metrics, schedule string, log platform.Logger) (*Stats, error) {
	if items == nil {
		return nil, errors.New("stats requires an item counter")
	}
	if schedule == "" {
		schedule = DefaultStatsSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	if metrics == nil {
		metrics = platform.NoopMetrics{}
	}
	if log == nil {
		log = platform.NewNoopLogger()
	}
	return &Stats{items: items, metrics: metrics, log: log, schedule: schedule}, nil
}

// Collect reads the count once and sets the gauge.
func (s *Stats) Collect(ctx context.Context) error {
	n, err := s.items.Count(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	s.metrics.Gauge(ctx, StoredGauge, float64(n), nil)
	return nil
}

func (s *Stats) Start(ctx context.Context) error {
	runCtx := context.WithoutCancel(ctx)
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(runCtx, 10*time.Second)
		defer cancel()
		if err := s.Collect(ctx); err != nil {
			s.log.Error("collect item stats", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule item stats: %w", err)
	}
	if err := s.Collect(ctx); err != nil {
		s.log.Error("collect item stats", "error", err)
	}
	s.cron.Start()
	s.log.Info("item stats scheduled", "schedule", s.schedule)
	return nil
}

// Stop waits for a running collection unless ctx ends first.
func (s *Stats) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
