package ports

import (
	"context"
	"errors"
)

// HealthChecker abstracts a dependency health probe.
// Implementations should return error if unhealthy.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// ErrDegraded is wrapped by checkers whose dependency is impaired while the
// service keeps answering, e.g. the cache serving from its local tier only.
var ErrDegraded = errors.New("degraded")
