package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger matches pgxpool.Pool and friends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck probes database connectivity. Intended as a readiness
// check so the service stops taking traffic when the database is gone.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping database")
		}
		return nil
	}
}

// GoroutineCountCheck flags a goroutine leak once the count passes the
// threshold. Intended as a liveness check.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}
