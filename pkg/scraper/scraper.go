package scraper

import (
	"context"
	"fmt"
	"time"

	"fbharvest/pkg/checkpoint"
	"fbharvest/pkg/config"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/export"
	"fbharvest/pkg/harvester"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"
	"fbharvest/pkg/ratelimit"
	"fbharvest/pkg/retry"
)

// Options control what each run collects and how watch mode paces runs
type Options struct {
	MaxRecords   int
	Fields       models.FieldSet
	ExportPath   string
	GroupDelay   time.Duration
	PollInterval time.Duration
	RunsPerHour  int
}

// OptionsFromConfig maps configuration onto scraper options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRecords:   cfg.Harvest.MaxRecords,
		Fields:       models.NewFieldSet(cfg.Harvest.Fields...),
		GroupDelay:   cfg.Schedule.GroupDelay,
		PollInterval: cfg.Schedule.PollInterval,
		RunsPerHour:  cfg.Schedule.RunsPerHour,
	}
}

// Outcome is the result of one group run
type Outcome struct {
	Group  models.Group
	Result *harvester.Result
	Stored int
	Export string
	Err    error
}

// Scraper orchestrates group harvests
type Scraper struct {
	store     Store
	sessions  SessionFactory
	harvester *harvester.Harvester
	limiter   ratelimit.Limiter
	opts      Options
	logger    logger.Logger
	record    func(models.Group, checkpoint.Run) error
	now       func() time.Time
}

// New creates a scraper from configuration
func New(cfg *config.Config, store Store, sessions SessionFactory, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	h := harvester.New(store, harvester.OptionsFromConfig(cfg, log), log)
	return NewWithHarvester(store, sessions, h, OptionsFromConfig(cfg), log)
}

// NewWithHarvester creates a scraper around an existing harvester
func NewWithHarvester(store Store, sessions SessionFactory, h *harvester.Harvester, opts Options, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		store:     store,
		sessions:  sessions,
		harvester: h,
		limiter:   ratelimit.PerHour(opts.RunsPerHour),
		opts:      opts,
		logger:    log.WithField("component", "scraper"),
		record:    recordCheckpoint,
		now:       time.Now,
	}
}

// WithExport writes each run's posts to a JSON file at path. The path may
// contain {group} and {date} placeholders; "-" writes to stdout.
func (s *Scraper) WithExport(path string) *Scraper {
	s.opts.ExportPath = path
	return s
}

// RunGroup harvests one group and stores what is new
func (s *Scraper) RunGroup(ctx context.Context, g models.Group) (*Outcome, error) {
	if g.Key == "" {
		g = models.NewGroup(g.Name, g.URL)
	}
	outcome := &Outcome{Group: g}
	log := s.logger.WithField("group", g.Key)

	stored, err := s.store.EnsureGroup(ctx, g)
	if err != nil {
		return s.fail(outcome, err)
	}
	outcome.Group = stored

	session, err := s.sessions(ctx)
	if err != nil {
		return s.fail(outcome, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close browser session")
		}
	}()

	res, err := s.harvester.Harvest(ctx, session, stored, s.opts.MaxRecords, s.opts.Fields)
	if err != nil {
		return s.fail(outcome, err)
	}
	outcome.Result = res

	n, err := s.store.SavePosts(ctx, stored, res.Posts)
	if err != nil {
		return s.fail(outcome, err)
	}
	outcome.Stored = n

	if s.opts.ExportPath != "" {
		path := export.PathFor(s.opts.ExportPath, stored, s.now())
		if err := export.FromResult(res, s.now()).Save(path); err != nil {
			log.WithError(err).Error("Failed to export posts")
		} else {
			outcome.Export = path
		}
	}

	run := checkpoint.Run{
		Stop:     string(res.Stop),
		Accepted: res.Len(),
		Stored:   n,
		Scrolls:  res.Stats.Scrolls,
		Duration: res.Stats.Duration,
	}
	if res.Len() > 0 {
		run.Cursor = res.Posts[res.Len()-1].Fingerprint.String()
	}
	s.recordRun(stored, run)

	log.InfoWithFields("Group run finished", map[string]interface{}{
		"stop":     string(res.Stop),
		"accepted": res.Len(),
		"stored":   n,
	})
	return outcome, nil
}

func (s *Scraper) fail(outcome *Outcome, err error) (*Outcome, error) {
	outcome.Err = err
	s.logger.WithField("group", outcome.Group.Key).
		WithError(err).
		WithField("type", string(errs.TypeOf(err))).
		Error("Group run failed")
	s.recordRun(outcome.Group, checkpoint.Run{Err: err})
	return outcome, err
}

func (s *Scraper) recordRun(g models.Group, run checkpoint.Run) {
	if s.record == nil {
		return
	}
	if err := s.record(g, run); err != nil {
		s.logger.WithField("group", g.Key).WithError(err).Warn("Failed to record checkpoint")
	}
}

// RunAll harvests groups one after another, pausing GroupDelay between
// them. A failed group does not stop the others unless the session itself
// is invalid or ctx is done.
func (s *Scraper) RunAll(ctx context.Context, groups []models.Group) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(groups))

	for i, g := range groups {
		if i > 0 && s.opts.GroupDelay > 0 {
			if err := retry.Wait(ctx, s.opts.GroupDelay); err != nil {
				return outcomes, errs.Wrap(errs.ErrorTypeCancelled, "run groups", err)
			}
		}

		outcome, err := s.RunGroup(ctx, g)
		outcomes = append(outcomes, outcome)
		if err == nil {
			continue
		}
		if errs.Is(err, errs.ErrorTypeSessionInvalid) || errs.Is(err, errs.ErrorTypeCancelled) {
			return outcomes, err
		}
		if ctx.Err() != nil {
			return outcomes, errs.Wrap(errs.ErrorTypeCancelled, "run groups", ctx.Err())
		}
	}
	return outcomes, nil
}

// Watch runs RunAll every PollInterval until ctx is done. Each cycle first
// waits for the runs-per-hour window. onCycle, when set, receives every
// cycle's outcomes. A session-invalid error stops watching.
func (s *Scraper) Watch(ctx context.Context, groups []models.Group, onCycle func([]*Outcome)) error {
	if len(groups) == 0 {
		return errs.New(errs.ErrorTypeConfig, "watch", "no groups configured")
	}
	interval := s.opts.PollInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	logger.LogComponentStart("watch", map[string]interface{}{
		"groups":        len(groups),
		"interval":      interval.String(),
		"runs_per_hour": s.opts.RunsPerHour,
	})
	reason := "cancelled"
	defer func() { logger.LogComponentStop("watch", reason) }()

	for cycle := 1; ; cycle++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		s.logger.InfoWithFields("Starting watch cycle", map[string]interface{}{
			"cycle":  cycle,
			"groups": len(groups),
		})

		outcomes, err := s.RunAll(ctx, groups)
		if onCycle != nil {
			onCycle(outcomes)
		}
		if err != nil {
			if errs.Is(err, errs.ErrorTypeCancelled) || ctx.Err() != nil {
				return nil
			}
			if errs.Is(err, errs.ErrorTypeSessionInvalid) {
				reason = "session invalid"
				return err
			}
			s.logger.WithError(err).Warn("Watch cycle ended early")
		}

		if err := retry.Wait(ctx, interval); err != nil {
			return nil
		}
	}
}

func recordCheckpoint(g models.Group, run checkpoint.Run) error {
	mgr, err := checkpoint.NewManager(g.Key)
	if err != nil {
		return err
	}
	cp, err := mgr.LoadOrCreate(g.Key, g.URL)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return mgr.RecordRun(cp, run)
}
