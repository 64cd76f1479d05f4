// Package database holds the storage clients shared by the API and the workers.
package database

import "context"

// Pinger is a dependency the readiness check can ping.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}
