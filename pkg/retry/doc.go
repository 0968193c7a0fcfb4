// Package retry provides backoff and retry logic for the flaky parts of a
// browser session: navigations that time out, media requests that hit a
// busy CDN, and login attempts that need a fresh page.
//
// Features:
//   - Multiple backoff strategies (exponential, linear, constant)
//   - Jitter to avoid synchronized retries
//   - Context support for cancellation
//   - Classification through pkg/errors: navigation, timeout and network
//     errors are retried, everything else is returned at once
//   - Per-attempt cleanup hook (OnRetry)
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//		return page.Navigate(ctx, platform.ExploreURL)
//	}, retry.FromConfig(cfg.Retry, "navigate", log))
//
//	// Fixed schedule with cleanup between attempts
//	rc := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     &retry.ConstantBackoff{Delay: 2 * time.Second},
//		RetryIf:     retry.Always,
//		OnRetry:     func(attempt int, err error, delay time.Duration) { closePage() },
//	}
//	err := retry.Do(ctx, attemptLogin, rc)
//
// Wrap an error with Permanent to stop retrying regardless of RetryIf.
package retry
