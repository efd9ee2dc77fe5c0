package platform

import (
	"context"
	"errors"
	"fmt"
)

type Startable interface {
	Start(context.Context) error
}

type Stoppable interface {
	Stop(context.Context) error
}

// LifecycleHooks adapts plain functions to Startable and Stoppable.
type LifecycleHooks struct {
	OnStart func(context.Context) error
	OnStop  func(context.Context) error
}

func (h LifecycleHooks) Start(ctx context.Context) error {
	if h.OnStart == nil {
		return nil
	}
	return h.OnStart(ctx)
}

func (h LifecycleHooks) Stop(ctx context.Context) error {
	if h.OnStop == nil {
		return nil
	}
	return h.OnStop(ctx)
}

type lifecycleEntry struct {
	start func(context.Context) error
	stop  func(context.Context) error
}

// startAll starts entries in order. When one fails, the ones already
// started are stopped in reverse order and every error is returned joined.
func startAll(ctx context.Context, entries []lifecycleEntry) error {
	for i, e := range entries {
		if e.start == nil {
			continue
		}
		if err := e.start(ctx); err != nil {
			err = fmt.Errorf("lifecycle start: %w", err)
			if rbErr := stopAll(context.Background(), entries[:i]); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("lifecycle rollback: %w", rbErr))
			}
			return err
		}
	}
	return nil
}

// stopAll stops entries in reverse order, collecting every error.
func stopAll(ctx context.Context, entries []lifecycleEntry) error {
	var agg error
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].stop == nil {
			continue
		}
		if err := entries[i].stop(ctx); err != nil {
			agg = errors.Join(agg, err)
		}
	}
	return agg
}
