package migrate

import (
	"context"
	"fmt"
	"time"
)

// maxRetryDelay caps the wait between two attempts.
const maxRetryDelay = 30 * time.Second

// retryDelay returns the wait after the given failed attempt: RetryDelay
// doubled for each earlier failure, capped at maxRetryDelay.
func (im *Importer) retryDelay(attempt int) time.Duration {
	delay := im.config.RetryDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// retry runs op up to Config.MaxRetries times, waiting retryDelay between
// attempts. what names the step in logs and in the returned error.
func (im *Importer) retry(ctx context.Context, what string, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = op(ctx); err == nil {
			if attempt > 1 {
				im.logger.Info("step recovered", "step", what, "attempt", attempt)
			}
			return nil
		}
		if attempt >= im.config.MaxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", what, attempt, err)
		}

		delay := im.retryDelay(attempt)
		im.logger.Warn("step failed, retrying",
			"step", what,
			"attempt", attempt,
			"maxAttempts", im.config.MaxRetries,
			"delay", delay,
			"err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
