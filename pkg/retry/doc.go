// Package retry wraps operations against the live browser session in a typed
// retry policy.
//
// Transient element faults (stale handle, not found, timeout, click
// intercepted, generic driver fault) are retried with exponential backoff.
// Anything else, including a session-invalid fault, is returned on the first
// failure. When the attempt ceiling is reached the last fault is wrapped in an
// exhausted error:
//
//	r := retry.NewRetrier(retry.FromConfig(cfg.Retry, log)).Named("open feed")
//	err := r.WithContext(ctx).Do(func() error {
//		return session.Navigate(url)
//	})
//	if errs.Is(err, errs.ErrorTypeExhausted) { ... }
//
// Per-element probing in the candidate extractor deliberately does not use
// this package: a stale handle there means "skip", not "retry".
package retry
