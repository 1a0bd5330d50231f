package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/logger"

	"github.com/playwright-community/playwright-go"
)

// LaunchOptions configures a Playwright-backed session
type LaunchOptions struct {
	Headless          bool
	UserAgent         string
	Cookies           []playwright.OptionalCookie
	NavigationTimeout time.Duration
	Logger            logger.Logger
}

// PlaywrightSession drives one Chromium page through playwright-go
type PlaywrightSession struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	context    playwright.BrowserContext
	page       playwright.Page
	navTimeout time.Duration
	logger     logger.Logger
}

// Launch starts Chromium, installs cookies and opens a blank page
func Launch(opts LaunchOptions) (*PlaywrightSession, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDriver, "start playwright", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--disable-notifications", "--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.ErrorTypeDriver, "launch chromium", err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, errs.Wrap(errs.ErrorTypeDriver, "new browser context", err)
	}

	if len(opts.Cookies) > 0 {
		if err := bctx.AddCookies(opts.Cookies); err != nil {
			_ = b.Close()
			_ = pw.Stop()
			return nil, errs.Wrap(errs.ErrorTypeDriver, "add cookies", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, errs.Wrap(errs.ErrorTypeDriver, "new page", err)
	}

	log.InfoWithFields("Browser session started", map[string]interface{}{
		"headless": opts.Headless,
		"cookies":  len(opts.Cookies),
	})

	return &PlaywrightSession{
		pw:         pw,
		browser:    b,
		context:    bctx,
		page:       page,
		navTimeout: opts.NavigationTimeout,
		logger:     log,
	}, nil
}

// Navigate loads url and waits for DOMContentLoaded
func (s *PlaywrightSession) Navigate(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.navTimeout.Milliseconds())),
	})
	return Classify("navigate", err)
}

// URL returns the page's current address
func (s *PlaywrightSession) URL() string {
	return s.page.URL()
}

// WaitFor waits for selector to be attached
func (s *PlaywrightSession) WaitFor(selector string, timeout time.Duration) error {
	_, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return Classify("wait for "+selector, err)
}

// QueryAll returns all page elements matching selector
func (s *PlaywrightSession) QueryAll(selector string) ([]Element, error) {
	handles, err := s.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, Classify("query "+selector, err)
	}
	return wrapHandles(handles), nil
}

// ScrollBy scrolls by a fraction of the viewport height
func (s *PlaywrightSession) ScrollBy(fraction float64) error {
	_, err := s.page.Evaluate(fmt.Sprintf("window.scrollBy(0, window.innerHeight * %g)", fraction))
	return Classify("scroll", err)
}

// Close shuts down the page, browser and driver
func (s *PlaywrightSession) Close() error {
	var closeErrs []error
	if err := s.context.Close(); err != nil {
		closeErrs = append(closeErrs, err)
	}
	if err := s.browser.Close(); err != nil {
		closeErrs = append(closeErrs, err)
	}
	if err := s.pw.Stop(); err != nil {
		closeErrs = append(closeErrs, err)
	}
	return errors.Join(closeErrs...)
}

type playwrightElement struct {
	handle playwright.ElementHandle
}

func wrapHandles(handles []playwright.ElementHandle) []Element {
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &playwrightElement{handle: h})
	}
	return out
}

func (e *playwrightElement) QueryAll(selector string) ([]Element, error) {
	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, Classify("query "+selector, err)
	}
	return wrapHandles(handles), nil
}

func (e *playwrightElement) Attribute(name string) (string, error) {
	v, err := e.handle.GetAttribute(name)
	return v, Classify("attribute "+name, err)
}

func (e *playwrightElement) Text() (string, error) {
	v, err := e.handle.InnerText()
	return v, Classify("inner text", err)
}

func (e *playwrightElement) OuterHTML() (string, error) {
	v, err := e.handle.Evaluate("el => el.outerHTML")
	if err != nil {
		return "", Classify("outer html", err)
	}
	html, ok := v.(string)
	if !ok {
		return "", errs.New(errs.ErrorTypeDriver, "outer html", fmt.Sprintf("unexpected result type %T", v))
	}
	return html, nil
}

func (e *playwrightElement) Click() error {
	return Classify("click", e.handle.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(5000),
	}))
}

func (e *playwrightElement) Visible() (bool, error) {
	v, err := e.handle.IsVisible()
	return v, Classify("is visible", err)
}

// Classify maps a playwright error onto the fault taxonomy
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, playwright.ErrTimeout) || strings.Contains(msg, "timeout"):
		return errs.Wrap(errs.ErrorTypeTimeout, op, err)
	case strings.Contains(msg, "not attached to the dom") ||
		strings.Contains(msg, "detached") ||
		strings.Contains(msg, "stale"):
		return errs.Wrap(errs.ErrorTypeStale, op, err)
	case strings.Contains(msg, "intercepts pointer events") ||
		strings.Contains(msg, "not receive pointer events"):
		return errs.Wrap(errs.ErrorTypeClickIntercepted, op, err)
	case strings.Contains(msg, "no node found") ||
		strings.Contains(msg, "failed to find element"):
		return errs.Wrap(errs.ErrorTypeNotFound, op, err)
	default:
		return errs.Wrap(errs.ErrorTypeDriver, op, err)
	}
}
