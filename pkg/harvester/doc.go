// Package harvester runs one incremental harvest of a group feed.
//
// The session goroutine scrolls the feed, identifies candidates and captures
// their markup; a worker pool extracts records from that markup. Results are
// buffered by submission order and passed to the dedup gate in feed order, so
// the stop decision is the same no matter which worker finishes first. At
// most maxRecords candidates are accepted or in flight at any time.
//
// Basic usage:
//
//	h := harvester.New(store, harvester.OptionsFromConfig(cfg, log), log)
//	res, err := h.Harvest(ctx, session, group, 25, models.NewFieldSet())
//	if err != nil {
//		return err
//	}
//	for post := range res.All() {
//		// oldest first
//	}
package harvester
