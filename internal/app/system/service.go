package system

import "context"

// Service is a lifecycle-managed component: HTTP server, worker pool,
// beat scheduler, channel-layer listener.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
