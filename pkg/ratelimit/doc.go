// Package ratelimit limits how often watch mode starts harvest runs.
//
// SlidingWindow tracks run start times within a moving window, so a cap of
// six runs per hour holds over any sixty minutes rather than per clock hour.
// Wait honours context cancellation, which lets the scheduler shut down
// while it is waiting for the window to open.
//
//	limiter := ratelimit.PerHour(cfg.Schedule.RunsPerHour)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
