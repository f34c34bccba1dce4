package health

import "context"

// Pinger is satisfied by both store clients.
type Pinger interface {
	Ping(ctx context.Context) error
}
