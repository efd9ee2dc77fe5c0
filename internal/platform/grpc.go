package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServiceRegistrar registers itself with a gRPC server.
type GRPCServiceRegistrar interface {
	RegisterGRPCService(server *grpc.Server)
}

const defaultHealthInterval = 10 * time.Second

// WithGRPCServer adds a gRPC listener serving grpc.health.v1 and reflection
// plus any extra services. The overall health status mirrors the readiness
// probes and is refreshed every few seconds.
func WithGRPCServer(addrKey string, services ...GRPCServiceRegistrar) Option {
	return func(ms *Micro) error {
		if addrKey == "" {
			return errors.New("grpc addr property key required")
		}

		server := grpc.NewServer()
		reflection.Register(server)
		hs := health.NewServer()
		healthpb.RegisterHealthServer(server, hs)

		for _, svc := range services {
			if svc == nil {
				return errors.New("nil grpc service provided")
			}
			svc.RegisterGRPCService(server)
			ms.addComponent(svc)
		}

		addr := ms.deps.Config.GetPort(addrKey, ":50051")
		interval := ms.deps.Config.GetDurationOrDef("grpc.health.interval", defaultHealthInterval)
		ms.addRunner(&grpcServerRunner{
			addr:     addr,
			server:   server,
			health:   hs,
			ready:    ms.health.ReadyErr,
			interval: interval,
			log:      ms.deps.Logger,
			errCh:    make(chan error, 1),
		})
		return nil
	}
}

type grpcServerRunner struct {
	addr     string
	server   *grpc.Server
	health   *health.Server
	ready    func(context.Context) error
	interval time.Duration
	log      Logger

	errCh chan error
	stop  context.CancelFunc
	wg    sync.WaitGroup
}

func (r *grpcServerRunner) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("grpc listen on %s: %w", r.addr, err)
	}
	if r.log != nil {
		r.log.Info("grpc server listening", "addr", lis.Addr().String())
	}

	r.refreshHealth(ctx)
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.stop = cancel
	r.wg.Add(1)
	go r.watchHealth(watchCtx)

	go func() {
		if err := r.server.Serve(lis); err != nil {
			r.errCh <- err
		}
		close(r.errCh)
	}()
	return nil
}

func (r *grpcServerRunner) watchHealth(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshHealth(ctx)
		}
	}
}

func (r *grpcServerRunner) refreshHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if r.ready != nil {
		if err := r.ready(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	r.health.SetServingStatus("", status)
}

func (r *grpcServerRunner) Stop(ctx context.Context) error {
	if r.stop != nil {
		r.stop()
	}
	r.wg.Wait()
	r.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(stopped)
	}()

	timeout := time.NewTimer(5 * time.Second)
	defer timeout.Stop()
	select {
	case <-stopped:
	case <-ctx.Done():
		r.server.Stop()
	case <-timeout.C:
		r.server.Stop()
	}

	select {
	case err, ok := <-r.errCh:
		if ok && err != nil {
			return err
		}
	default:
	}
	return nil
}
