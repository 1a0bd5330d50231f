// Package browser abstracts the rendered page the harvester reads from.
package browser

import "time"

// Element is an opaque handle to a rendered DOM node. Any read may fail with
// a stale fault when the node has been replaced since it was queried.
type Element interface {
	// QueryAll returns descendants matching selector (CSS, or "xpath=" prefixed)
	QueryAll(selector string) ([]Element, error)
	// Attribute returns the attribute value, or "" when absent
	Attribute(name string) (string, error)
	// Text returns the rendered text of the subtree
	Text() (string, error)
	// OuterHTML captures the markup of the subtree
	OuterHTML() (string, error)
	Click() error
	Visible() (bool, error)
}

// Session is a single-owner browser tab. It is not safe for concurrent use.
type Session interface {
	Navigate(url string) error
	URL() string
	// WaitFor blocks until selector matches or timeout elapses
	WaitFor(selector string, timeout time.Duration) error
	QueryAll(selector string) ([]Element, error)
	// ScrollBy scrolls the viewport down by fraction of its height
	ScrollBy(fraction float64) error
	Close() error
}
