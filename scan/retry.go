package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	scanerrors "github.com/driftlake/metascan/errors"
)

// withRetry runs op with bounded exponential backoff. Only throttling and
// transient failures are retried; permission, not-found and validation
// errors return immediately. Retries respect context cancellation.
func withRetry(ctx context.Context, log *slog.Logger, attempts uint64, op string, fn func() error) error {
	if attempts == 0 {
		return fn()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, attempts), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !scanerrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		log.Debug("retrying backend call",
			"op", op,
			"class", scanerrors.Classify(err),
			"error", err)
		return err
	}, policy)
}
