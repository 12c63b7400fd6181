package backup

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
)

// Retry is the higher-order retry helper used for admin-client creation and
// topic creation (§9 Design Notes: "implement as a higher-order helper
// parameterized by deadline, per-attempt wait, retryable predicate,
// description; do not bake retries into business logic"). fn is retried
// until it succeeds, deadline elapses, or retryable reports false for an
// error. Every failed attempt is logged naming the action and the outcome.
func Retry(deadline, wait time.Duration, retryable func(error) bool, describe string, fn func() error) error {
	start := time.Now()
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if time.Since(start) >= deadline {
			return lastErr
		}
		slog.Warn("retrying after failure",
			slog.String("action", describe),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()))
		time.Sleep(wait)
	}
}

// IsRetryableKafkaError reports whether err originates from the Kafka
// broker/client layer (a protocol-level error from franz-go's kerr package,
// or a network-level dial/timeout failure reaching a broker) rather than
// from this process's own logic — the only class of error the retry helper
// should retry past.
func IsRetryableKafkaError(err error) bool {
	if err == nil {
		return false
	}
	var kerrErr *kerr.Error
	if errors.As(err, &kerrErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
