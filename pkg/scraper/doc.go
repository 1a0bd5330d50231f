// Package scraper runs harvests end to end for configured groups.
//
// For each group the Scraper registers the group in storage, opens a browser
// session, runs one incremental harvest, stores the accepted posts oldest
// first, optionally exports them to JSON and records the run in the group's
// checkpoint. Watch repeats that for a list of groups on a poll interval,
// capped by a sliding window of runs per hour.
//
// Usage:
//
//	s := scraper.New(cfg, store, sessions, log)
//	outcome, err := s.RunGroup(ctx, models.NewGroup("Rentals", url))
//	if err != nil {
//		return err
//	}
//	fmt.Println(outcome.Stored, "new posts")
//
// A session-invalid error ends RunAll early, since every later group would
// fail the same way with the same cookies.
package scraper
