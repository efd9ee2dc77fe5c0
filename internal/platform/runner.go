package platform

import "context"

// Runner is a lifecycle-managed server such as the HTTP or gRPC listener.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
