package upstream

import (
	"context"
	"time"
)

// withRetry runs fn up to cfg.maxRetries+1 times, backing off exponentially
// between attempts. Network errors, 5xx, and 429 are retried (429 with a
// longer floor); permanent 4xx and decode errors fail immediately. Mirrors
// the doubling-backoff-with-cap shape of the milestone listener's reconnect
// loop, but bounded instead of infinite. See spec §4.1/§7.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := c.baseBackoff

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		upErr, ok := err.(*Error)
		if !ok || !upErr.retryable() {
			return err
		}
		if attempt == c.maxRetries {
			break
		}

		wait := backoff
		if upErr.Kind == ErrRateLimited && wait < c.rateLimitBackoff {
			wait = c.rateLimitBackoff
		}

		c.logger.Warn("upstream call failed, retrying",
			"op", op, "attempt", attempt+1, "kind", upErr.Kind, "wait", wait, "error", err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
	return lastErr
}
