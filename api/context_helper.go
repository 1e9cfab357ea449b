package api

import (
	"context"
	"time"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout derives a context for one unit of database work. A non-positive d
// uses QueryTimeout.
func WithQueryTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if d <= 0 {
		d = QueryTimeout
	}
	return context.WithTimeout(parent, d)
}
