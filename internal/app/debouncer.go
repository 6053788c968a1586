/**
 * @description
 * Redis-backed soft debouncer for the client-facing daily trigger. It only
 * suppresses redundant invocations of the orchestrator within the same day;
 * it is NOT a correctness mechanism. The engines' period markers and
 * idempotency keys remain the sole defense against double processing.
 */
package app

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRunDebouncer tracks the last automation run date in Redis.
type RedisRunDebouncer struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRunDebouncer creates a debouncer. A nil client yields a no-op
// debouncer that always reports "not yet run".
func NewRedisRunDebouncer(client redis.UniversalClient, prefix string) *RedisRunDebouncer {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "dompetku:automation"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisRunDebouncer{client: client, prefix: trimmedPrefix}
}

// MarkRun records that the automation ran for the given date and reports
// whether this caller was the first to do so today. Redis being down or
// unconfigured degrades to first=true: an extra run is harmless.
func (d *RedisRunDebouncer) MarkRun(ctx context.Context, date time.Time) (first bool, err error) {
	if d == nil || d.client == nil {
		return true, nil
	}

	key := d.prefix + ":last_run:" + date.Format("2006-01-02")
	ok, err := d.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), 48*time.Hour).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}
