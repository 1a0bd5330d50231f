package feed

import (
	"context"
	"net/url"
	"strings"
	"time"

	"fbharvest/pkg/browser"
	"fbharvest/pkg/config"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/retry"

	"golang.org/x/time/rate"
)

const (
	// FeedSelector matches the scrolling feed container
	FeedSelector = "div[role='feed'], div[data-testid='post_scroller']"

	// PostSelector matches rendered post containers in document order
	PostSelector = `div.x1yztbdb.x1n2onr6.xh8yej3.x1ja2u2z, div[role="article"]`

	// SeeMoreSelector matches the text expansion control inside a post
	SeeMoreSelector = "xpath=.//div[@role='button'][contains(., 'See more') or contains(., 'Show more')] | .//a[contains(., 'See more') or contains(., 'Show more')]"

	// ScrollFraction is the share of the viewport height scrolled per step
	ScrollFraction = 0.8
)

// Options tunes the scroll controller
type Options struct {
	FeedWait    time.Duration
	ScrollWait  time.Duration
	SettleDelay time.Duration
	Poll        time.Duration
	ExpandDelay time.Duration
	// MinScrollInterval is the least time between two scroll steps,
	// measured from scroll to scroll; zero disables pacing
	MinScrollInterval time.Duration
	Retry             *retry.Config
	Logger            logger.Logger
}

// OptionsFromConfig maps configuration onto controller options
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		FeedWait:          cfg.Browser.FeedWait,
		ScrollWait:        cfg.Harvest.ScrollWait,
		SettleDelay:       cfg.Harvest.SettleDelay,
		Poll:              250 * time.Millisecond,
		ExpandDelay:       500 * time.Millisecond,
		MinScrollInterval: cfg.Harvest.MinScrollInterval,
		Retry:             retry.FromConfig(cfg.Retry, log),
		Logger:            log,
	}
}

// Controller drives one browser session over a group feed. It owns the
// session for the duration of a harvest and must not be shared.
type Controller struct {
	session   browser.Session
	opts      Options
	retrier   *retry.Retrier
	limiter   *rate.Limiter
	logger    logger.Logger
	lastCount int
}

// New creates a controller for session
func New(session browser.Session, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.FeedWait <= 0 {
		opts.FeedWait = 30 * time.Second
	}
	if opts.ScrollWait <= 0 {
		opts.ScrollWait = 15 * time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 250 * time.Millisecond
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
		opts.Retry.Logger = opts.Logger
	}

	limit := rate.Inf
	if opts.MinScrollInterval > 0 {
		limit = rate.Every(opts.MinScrollInterval)
	}

	return &Controller{
		session: session,
		opts:    opts,
		retrier: retry.NewRetrier(opts.Retry),
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger.WithField("component", "feed"),
	}
}

// ChronologicalURL asks the group feed for newest-first ordering
func ChronologicalURL(groupURL string) string {
	if strings.Contains(groupURL, "sorting_setting=") {
		return groupURL
	}
	sep := "?"
	if strings.Contains(groupURL, "?") {
		sep = "&"
	}
	return groupURL + sep + "sorting_setting=CHRONOLOGICAL"
}

// CheckSession rejects urls that show the session was redirected away from
// the group feed.
func CheckSession(current string) error {
	u, err := url.Parse(current)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeSessionInvalid, "check session", err)
	}
	path := u.Path + "?" + u.RawQuery
	switch {
	case !strings.Contains(path, "groups/"):
		return errs.New(errs.ErrorTypeSessionInvalid, "check session", "not a group page: "+current)
	case strings.Contains(path, "login"), strings.Contains(path, "checkpoint"), strings.Contains(path, "not_found"):
		return errs.New(errs.ErrorTypeSessionInvalid, "check session", "redirected to "+current)
	}
	return nil
}

// Open navigates to the group feed and waits for the feed container. A
// redirect to a login, checkpoint or missing-group page fails immediately
// with a session-invalid error.
func (c *Controller) Open(ctx context.Context, groupURL string) error {
	target := ChronologicalURL(groupURL)
	r := c.retrier.WithContext(ctx)

	if err := r.Named("navigate").Do(func() error {
		return c.session.Navigate(target)
	}); err != nil {
		return err
	}

	if err := CheckSession(c.session.URL()); err != nil {
		c.logger.ErrorWithFields("Session is invalid", map[string]interface{}{
			"target":  target,
			"current": c.session.URL(),
		})
		return err
	}

	if err := r.Named("wait for feed").Do(func() error {
		if err := CheckSession(c.session.URL()); err != nil {
			return err
		}
		return c.session.WaitFor(FeedSelector, c.opts.FeedWait)
	}); err != nil {
		return err
	}

	c.DismissOverlays()

	handles, err := c.posts(ctx)
	if err != nil {
		return err
	}
	c.lastCount = len(handles)

	c.logger.InfoWithFields("Feed opened", map[string]interface{}{
		"url":   target,
		"posts": c.lastCount,
	})
	return nil
}

// Advance scrolls one step, waits up to ScrollWait for more posts to render,
// dismisses overlays and returns every visible post in document order.
// grew reports whether the visible count increased.
func (c *Controller) Advance(ctx context.Context) ([]browser.Element, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, errs.Wrap(errs.ErrorTypeCancelled, "advance", err)
	}

	before := c.lastCount
	if err := c.retrier.WithContext(ctx).Named("scroll").Do(func() error {
		return c.session.ScrollBy(ScrollFraction)
	}); err != nil {
		return nil, false, err
	}

	if err := retry.Wait(ctx, c.opts.SettleDelay); err != nil {
		return nil, false, errs.Wrap(errs.ErrorTypeCancelled, "advance", err)
	}

	if err := c.waitForGrowth(ctx, before); err != nil {
		return nil, false, err
	}

	c.DismissOverlays()

	handles, err := c.posts(ctx)
	if err != nil {
		return nil, false, err
	}
	c.lastCount = len(handles)

	return handles, len(handles) > before, nil
}

// Visible returns the currently rendered posts without scrolling
func (c *Controller) Visible(ctx context.Context) ([]browser.Element, error) {
	return c.posts(ctx)
}

func (c *Controller) waitForGrowth(ctx context.Context, before int) error {
	deadline := time.Now().Add(c.opts.ScrollWait)
	for {
		elems, err := c.session.QueryAll(PostSelector)
		if err == nil && len(elems) > before {
			return nil
		}
		if time.Now().After(deadline) {
			c.logger.Debug("No new posts appeared after scroll")
			return nil
		}
		if err := retry.Wait(ctx, c.opts.Poll); err != nil {
			return errs.Wrap(errs.ErrorTypeCancelled, "wait for posts", err)
		}
	}
}

func (c *Controller) posts(ctx context.Context) ([]browser.Element, error) {
	cfg := c.retrier.WithContext(ctx).Named("collect posts").Config()
	return retry.DoWithResult(func() ([]browser.Element, error) {
		return c.session.QueryAll(PostSelector)
	}, &cfg)
}

// Expand clicks the post's "See more" control so captured markup carries the
// full text. Failure is logged and ignored.
func (c *Controller) Expand(ctx context.Context, post browser.Element) bool {
	buttons, err := post.QueryAll(SeeMoreSelector)
	if err != nil || len(buttons) == 0 {
		return false
	}

	for _, b := range buttons {
		visible, err := b.Visible()
		if err != nil || !visible {
			continue
		}
		if err := b.Click(); err != nil {
			c.logger.DebugWithFields("See more click failed", map[string]interface{}{
				"error": err.Error(),
				"type":  string(errs.TypeOf(err)),
			})
			continue
		}
		_ = retry.Wait(ctx, c.opts.ExpandDelay)
		return true
	}
	return false
}
