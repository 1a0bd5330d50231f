package harvester

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"fbharvest/internal/workers"
	"fbharvest/pkg/browser"
	"fbharvest/pkg/candidate"
	"fbharvest/pkg/config"
	"fbharvest/pkg/dedup"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/extract"
	"fbharvest/pkg/feed"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"
)

// Options tunes the harvest loop
type Options struct {
	Workers           int
	MaxScrollAttempts int
	NoGrowthLimit     int
	DrainPoll         time.Duration
	DrainTimeout      time.Duration
	Feed              feed.Options
}

// DefaultOptions returns the loop defaults: 5 workers, 50 scrolls, stop
// after 3 scrolls without growth, 30s final drain.
func DefaultOptions() Options {
	return Options{
		Workers:           5,
		MaxScrollAttempts: 50,
		NoGrowthLimit:     3,
		DrainPoll:         100 * time.Millisecond,
		DrainTimeout:      30 * time.Second,
	}
}

// OptionsFromConfig maps configuration onto harvest options
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		Workers:           cfg.Harvest.Workers,
		MaxScrollAttempts: cfg.Harvest.MaxScrollAttempts,
		NoGrowthLimit:     cfg.Harvest.NoGrowthLimit,
		DrainPoll:         cfg.Harvest.DrainPoll,
		DrainTimeout:      cfg.Harvest.DrainTimeout,
		Feed:              feed.OptionsFromConfig(cfg, log),
	}
}

// Harvester composes the scroll controller, candidate identification, the
// extraction pool and the dedup gate into one incremental harvest
type Harvester struct {
	cursors     CursorReader
	opts        Options
	logger      logger.Logger
	newScroller func(browser.Session) Scroller
	newParser   func(models.FieldSet, logger.Logger) workers.Parser
	identifier  Identifier
}

// New creates a harvester reading cursors from cursors
func New(cursors CursorReader, opts Options, log logger.Logger) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.MaxScrollAttempts <= 0 {
		opts.MaxScrollAttempts = def.MaxScrollAttempts
	}
	if opts.NoGrowthLimit <= 0 {
		opts.NoGrowthLimit = def.NoGrowthLimit
	}
	if opts.DrainPoll <= 0 {
		opts.DrainPoll = def.DrainPoll
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = def.DrainTimeout
	}
	if opts.Feed.Logger == nil {
		opts.Feed.Logger = log
	}

	h := &Harvester{
		cursors:    cursors,
		opts:       opts,
		logger:     log.WithField("component", "harvester"),
		identifier: candidate.New(log),
	}
	h.newScroller = func(s browser.Session) Scroller {
		return feed.New(s, h.opts.Feed)
	}
	h.newParser = func(fields models.FieldSet, log logger.Logger) workers.Parser {
		return extract.New(fields, log)
	}
	return h
}

// Harvest collects up to maxRecords posts of group that are newer than the
// stored cursor. It returns them oldest first, together with the reason the
// loop stopped. A session that cannot reach the feed fails with a
// session-invalid error; retries that run out fail with an exhausted error.
func (h *Harvester) Harvest(ctx context.Context, session browser.Session, group models.Group, maxRecords int, fields models.FieldSet) (*Result, error) {
	if maxRecords <= 0 {
		return nil, errs.New(errs.ErrorTypeConfig, "harvest", fmt.Sprintf("max records must be positive, got %d", maxRecords))
	}
	start := time.Now()
	log := h.logger.WithField("group", group.Key)

	cursor, err := h.cursors.LatestFingerprint(ctx, group)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, "read cursor", err)
	}
	gate := dedup.NewGate(cursor)
	logger.LogHarvestStart(log, group.URL, maxRecords, gate.HasCursor())

	scroller := h.newScroller(session)
	if err := scroller.Open(ctx, group.URL); err != nil {
		return nil, err
	}

	pool := workers.NewWorkerPool(h.opts.Workers, maxRecords, h.newParser(fields, log), log)
	pool.Start()

	r := &run{
		h:          h,
		ctx:        ctx,
		log:        log,
		scroller:   scroller,
		pool:       pool,
		gate:       gate,
		seen:       dedup.NewSeen(),
		max:        maxRecords,
		pending:    make(map[int]workers.Result),
		stopSeq:    math.MaxInt,
		acceptedNF: make([]*models.Post, 0, maxRecords),
	}

	reason, err := r.loop()
	if err != nil {
		pool.Abandon()
		log.WithError(err).WithField("type", string(errs.TypeOf(err))).Error("Harvest failed")
		return nil, err
	}

	if err := r.finalDrain(); err != nil {
		pool.Abandon()
		return nil, err
	}
	if r.done {
		reason = r.reason
	}

	// newest first in the feed, oldest first to the caller
	posts := slices.Clone(r.acceptedNF)
	slices.Reverse(posts)

	r.stats.Accepted = len(posts)
	r.stats.Duration = time.Since(start)
	logger.LogHarvestStop(log, group.URL, string(reason), r.stats.Accepted, r.stats.Scrolls, r.stats.Duration)

	return &Result{
		Group: group,
		Posts: posts,
		Stop:  reason,
		Stats: r.stats,
	}, nil
}

// run is the state of one harvest. It is owned by the session goroutine;
// only the worker pool runs elsewhere.
type run struct {
	h        *Harvester
	ctx      context.Context
	log      logger.Logger
	scroller Scroller
	pool     *workers.WorkerPool
	gate     *dedup.Gate
	seen     *dedup.Seen
	max      int

	// handles is the latest rendered list; every pass walks all of it and
	// skips identities already submitted, since a virtualized feed unmounts
	// posts from the top as it grows at the bottom
	handles     []browser.Element
	pos         int
	walkSeen    *dedup.Seen
	walkSkipped int
	fresh       bool
	nextSeq     int
	inflight    int

	// reorder buffer keyed by submission sequence
	pending     map[int]workers.Result
	nextDeliver int
	// stopSeq is the lowest sequence known to match the cursor
	stopSeq int

	acceptedNF []*models.Post
	done       bool
	reason     StopReason
	stats      Stats
}

func (r *run) cancelled() error {
	if err := r.ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrorTypeCancelled, "harvest", err)
	}
	return nil
}

// budget is the number of further candidates that may be submitted
func (r *run) budget() int {
	if r.done || r.stopSeq != math.MaxInt {
		return 0
	}
	return r.max - len(r.acceptedNF) - r.inflight - len(r.pending)
}

// walk starts a pass over a freshly queried list of handles
func (r *run) walk(handles []browser.Element) {
	r.handles = handles
	r.pos = 0
	r.walkSeen = dedup.NewSeen()
	r.walkSkipped = 0
	r.fresh = false
}

func (r *run) skipped() {
	r.walkSkipped++
	if r.walkSkipped > r.stats.Skipped {
		r.stats.Skipped = r.walkSkipped
	}
}

func (r *run) loop() (StopReason, error) {
	handles, err := r.scroller.Visible(r.ctx)
	if err != nil {
		return "", err
	}
	r.walk(handles)

	noGrowth := 0
	scrolled, grew := false, false
	for {
		if err := r.cancelled(); err != nil {
			return "", err
		}

		r.submit()
		r.drainReady()
		if r.done {
			return r.reason, nil
		}

		// a cursor match is pending on earlier results, or the budget is
		// held by in-flight work: wait for results instead of scrolling
		if r.stopSeq != math.MaxInt || (r.budget() <= 0 && r.inflight > 0) {
			if res, ok := r.pool.Poll(r.h.opts.DrainPoll); ok {
				r.receive(res)
			}
			continue
		}

		if r.pos < len(r.handles) {
			continue
		}

		// growth is judged once the pass after a scroll is complete: a
		// virtualized feed may keep its rendered count while new posts
		// replace old ones
		if scrolled {
			scrolled = false
			if grew || r.fresh {
				noGrowth = 0
			} else {
				noGrowth++
				if noGrowth >= r.h.opts.NoGrowthLimit {
					r.log.InfoWithFields("No new posts after consecutive scrolls", map[string]interface{}{
						"scrolls": noGrowth,
					})
					return StopExhausted, nil
				}
			}
		}

		if r.stats.Scrolls >= r.h.opts.MaxScrollAttempts {
			r.log.InfoWithFields("Scroll attempt ceiling reached", map[string]interface{}{
				"scrolls": r.stats.Scrolls,
			})
			return StopCeiling, nil
		}

		handles, more, err := r.scroller.Advance(r.ctx)
		if err != nil {
			return "", err
		}
		r.stats.Scrolls++
		r.walk(handles)
		scrolled, grew = true, more

		r.log.DebugWithFields("Scrolled feed", map[string]interface{}{
			"scroll":    r.stats.Scrolls,
			"visible":   len(r.handles),
			"accepted":  len(r.acceptedNF),
			"in_flight": r.inflight,
		})
	}
}

// submit walks the current handles while budget remains. Identities
// submitted on an earlier pass are passed over silently; a repeat within the
// same pass is a duplicate render.
func (r *run) submit() {
	for r.pos < len(r.handles) && r.budget() > 0 {
		el := r.handles[r.pos]
		r.pos++

		id, ok := r.h.identifier.Identify(el)
		if !ok {
			r.skipped()
			continue
		}
		if r.seen.Contains(id) {
			if r.walkSeen.Contains(id) {
				r.stats.Candidates++
				r.stats.Duplicates++
			}
			continue
		}
		r.stats.Candidates++
		r.fresh = true

		keys := []models.Identity{id}
		if r.scroller.Expand(r.ctx, el) && id.Synthetic {
			// expanded text changes the content key of later passes
			if expanded, ok := r.h.identifier.Identify(el); ok {
				keys = append(keys, expanded)
			}
		}

		html, err := el.OuterHTML()
		if err != nil || html == "" {
			logger.LogCandidateSkipped(r.log, "markup capture failed", err)
			r.skipped()
			continue
		}

		c := models.Candidate{Seq: r.nextSeq, Identity: id, HTML: html}
		if err := r.pool.Submit(workers.Job{Candidate: c}); err != nil {
			r.log.WithError(err).Warn("Extraction job rejected")
			r.skipped()
			continue
		}
		for _, k := range keys {
			r.seen.Mark(k)
			r.walkSeen.Mark(k)
		}
		r.nextSeq++
		r.inflight++
		r.stats.Submitted++
	}
}

// drainReady consumes every result that is already available
func (r *run) drainReady() {
	for !r.done {
		select {
		case res, ok := <-r.pool.Results():
			if !ok {
				return
			}
			r.receive(res)
		default:
			return
		}
	}
}

// receive buffers one result and delivers every result that is next in
// submission order to the gate
func (r *run) receive(res workers.Result) {
	r.inflight--
	if res.Error == nil && res.Seq < r.stopSeq && r.gate.Matches(res.Post) {
		r.stopSeq = res.Seq
	}
	r.pending[res.Seq] = res

	for !r.done {
		next, ok := r.pending[r.nextDeliver]
		if !ok {
			return
		}
		delete(r.pending, r.nextDeliver)
		r.nextDeliver++
		r.deliver(next)
	}
}

func (r *run) deliver(res workers.Result) {
	if res.Error != nil {
		r.stats.Failed++
		r.log.DebugWithFields("Dropped candidate after extraction", map[string]interface{}{
			"seq":   res.Seq,
			"error": res.Error.Error(),
		})
		return
	}

	switch r.gate.Test(res.Post) {
	case dedup.Accept:
		r.acceptedNF = append(r.acceptedNF, res.Post)
		if len(r.acceptedNF) >= r.max {
			r.finish(StopCount)
		}
	case dedup.Reject:
		r.stats.Rejected++
	case dedup.Complete:
		r.log.InfoWithFields("Reached previously stored post", map[string]interface{}{
			"fingerprint": res.Post.Fingerprint.String(),
			"accepted":    len(r.acceptedNF),
		})
		r.finish(StopDedup)
	}
}

func (r *run) finish(reason StopReason) {
	r.done = true
	r.reason = reason
}

// finalDrain waits a bounded time for submitted work that can still change
// the output, then stops the pool. Anything unfinished is abandoned.
func (r *run) finalDrain() error {
	deadline := time.Now().Add(r.h.opts.DrainTimeout)

	for !r.done && r.outstanding() {
		if err := r.cancelled(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			r.stats.Abandoned = r.inflight
			r.log.WarnWithFields("Drain timeout, abandoning unfinished extractions", map[string]interface{}{
				"in_flight": r.inflight,
			})
			break
		}
		if res, ok := r.pool.Poll(r.h.opts.DrainPoll); ok {
			r.receive(res)
		}
	}

	if r.done {
		r.pool.Abandon()
		return nil
	}
	if !r.pool.Stop(time.Until(deadline)) {
		r.stats.Abandoned = r.inflight
	}
	return nil
}

// outstanding reports whether some submitted result before the stop point
// has not been delivered yet
func (r *run) outstanding() bool {
	limit := r.nextSeq
	if r.stopSeq < limit {
		limit = r.stopSeq + 1
	}
	return r.nextDeliver < limit
}
