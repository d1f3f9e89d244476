package common

import (
	"context"
	"time"
)

// RetryDelay is the wait before attempt n (1-based) given a base delay. The
// multiplier doubles per attempt and stops growing after 2^8.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 8 {
		shift = 8
	}
	return base * time.Duration(1<<shift)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls fn up to attempts times while retryable(err) holds, sleeping
// RetryDelay(base, n) between calls. The last error is returned.
func Retry(ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for n := 1; n <= attempts; n++ {
		err = fn(ctx, n)
		if err == nil || !retryable(err) || n == attempts {
			return err
		}
		if serr := Sleep(ctx, RetryDelay(base, n)); serr != nil {
			return err
		}
	}
	return err
}
