package browser

import (
	"fmt"
	"sync"
	"time"

	errs "fbharvest/pkg/errors"
)

// FakeElement implements Element over static values for tests
type FakeElement struct {
	mu sync.Mutex

	Attrs    map[string]string
	TextBody string
	HTML     string
	Children map[string][]*FakeElement
	Hidden   bool

	// Stale makes every read fail as if the node was detached
	Stale bool

	// Error injection for testing
	ClickErrs []error
	OnClick   func()

	clicks int
}

// NewFakeElement creates an element with the given markup
func NewFakeElement(html string) *FakeElement {
	return &FakeElement{
		Attrs:    make(map[string]string),
		HTML:     html,
		Children: make(map[string][]*FakeElement),
	}
}

// WithAttr sets an attribute and returns the element
func (e *FakeElement) WithAttr(name, value string) *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[name] = value
	return e
}

// WithText sets the rendered text and returns the element
func (e *FakeElement) WithText(text string) *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TextBody = text
	return e
}

// WithChildren registers the matches returned for selector
func (e *FakeElement) WithChildren(selector string, children ...*FakeElement) *FakeElement {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Children == nil {
		e.Children = make(map[string][]*FakeElement)
	}
	e.Children[selector] = append(e.Children[selector], children...)
	return e
}

// SetStale toggles detached state
func (e *FakeElement) SetStale(stale bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Stale = stale
}

// Clicks returns how many successful clicks the element received
func (e *FakeElement) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *FakeElement) staleErr(op string) error {
	if e.Stale {
		return errs.New(errs.ErrorTypeStale, op, "element is not attached to the DOM")
	}
	return nil
}

func (e *FakeElement) QueryAll(selector string) ([]Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.staleErr("query " + selector); err != nil {
		return nil, err
	}
	return toElements(e.Children[selector]), nil
}

func (e *FakeElement) Attribute(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.staleErr("attribute " + name); err != nil {
		return "", err
	}
	return e.Attrs[name], nil
}

func (e *FakeElement) Text() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.staleErr("inner text"); err != nil {
		return "", err
	}
	return e.TextBody, nil
}

func (e *FakeElement) OuterHTML() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.staleErr("outer html"); err != nil {
		return "", err
	}
	return e.HTML, nil
}

func (e *FakeElement) Click() error {
	e.mu.Lock()
	if err := e.staleErr("click"); err != nil {
		e.mu.Unlock()
		return err
	}
	if len(e.ClickErrs) > 0 {
		err := e.ClickErrs[0]
		e.ClickErrs = e.ClickErrs[1:]
		if err != nil {
			e.mu.Unlock()
			return err
		}
	}
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *FakeElement) Visible() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.staleErr("is visible"); err != nil {
		return false, err
	}
	return !e.Hidden, nil
}

func toElements(in []*FakeElement) []Element {
	out := make([]Element, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	return out
}

// FakeSession simulates an infinite-scroll feed. Posts are listed top to
// bottom (newest first); each scroll reveals PageSize more of them. With
// Unmount set it behaves like a virtualized feed: each scroll also detaches
// that many posts from the top, and their handles go stale.
type FakeSession struct {
	mu sync.Mutex

	// PostSelector is the selector that returns the rendered posts
	PostSelector string
	Posts        []*FakeElement
	Revealed     int
	PageSize     int
	Unmount      int

	// Elements answers every other selector
	Elements map[string][]*FakeElement

	// LandingURL, when set, replaces the requested url after navigation
	LandingURL string

	// Error injection for testing
	NavigateErrs []error
	ScrollErrs   []error
	QueryErrs    map[string]error
	OnScroll     func(scrolls int)

	first       int
	url         string
	navigations []string
	scrolls     int
	closed      bool
}

// NewFakeSession creates a feed with posts, revealing pageSize per scroll
func NewFakeSession(postSelector string, pageSize int, posts ...*FakeElement) *FakeSession {
	revealed := pageSize
	if revealed > len(posts) {
		revealed = len(posts)
	}
	return &FakeSession{
		PostSelector: postSelector,
		Posts:        posts,
		Revealed:     revealed,
		PageSize:     pageSize,
		Elements:     make(map[string][]*FakeElement),
		QueryErrs:    make(map[string]error),
	}
}

// Add registers elements for a non-post selector
func (s *FakeSession) Add(selector string, elems ...*FakeElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Elements[selector] = append(s.Elements[selector], elems...)
}

func (s *FakeSession) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, url)
	if len(s.NavigateErrs) > 0 {
		err := s.NavigateErrs[0]
		s.NavigateErrs = s.NavigateErrs[1:]
		if err != nil {
			return err
		}
	}
	if s.LandingURL != "" {
		s.url = s.LandingURL
	} else {
		s.url = url
	}
	return nil
}

func (s *FakeSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// WaitFor returns immediately: nil when selector matches, a timeout fault otherwise
func (s *FakeSession) WaitFor(selector string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if selector == s.PostSelector && s.Revealed > 0 {
		return nil
	}
	if len(s.Elements[selector]) > 0 {
		return nil
	}
	return errs.New(errs.ErrorTypeTimeout, "wait for "+selector, fmt.Sprintf("timeout %s exceeded", timeout))
}

func (s *FakeSession) QueryAll(selector string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.QueryErrs[selector]; err != nil {
		return nil, err
	}
	if selector == s.PostSelector {
		return toElements(s.Posts[s.first:s.Revealed]), nil
	}
	return toElements(s.Elements[selector]), nil
}

func (s *FakeSession) ScrollBy(fraction float64) error {
	s.mu.Lock()
	if len(s.ScrollErrs) > 0 {
		err := s.ScrollErrs[0]
		s.ScrollErrs = s.ScrollErrs[1:]
		if err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.scrolls++
	s.Revealed += s.PageSize
	if s.Revealed > len(s.Posts) {
		s.Revealed = len(s.Posts)
	}
	for i := 0; i < s.Unmount && s.first < s.Revealed; i++ {
		s.Posts[s.first].SetStale(true)
		s.first++
	}
	n := s.scrolls
	hook := s.OnScroll
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Navigations returns every url passed to Navigate
func (s *FakeSession) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Scrolls returns the number of successful scrolls
func (s *FakeSession) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}

// Closed reports whether Close was called
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	_ Session = (*FakeSession)(nil)
	_ Element = (*FakeElement)(nil)
	_ Session = (*PlaywrightSession)(nil)
)
