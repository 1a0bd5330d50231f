// Package dedup implements the incremental stop rule of a harvest and the
// within-run candidate identity set.
package dedup

import (
	"sync"
	"sync/atomic"

	"fbharvest/pkg/fingerprint"
	"fbharvest/pkg/models"
)

// Verdict is the gate's decision for one extracted record
type Verdict int

const (
	// Accept means the record is new
	Accept Verdict = iota
	// Reject drops a record that cannot be deduplicated
	Reject
	// Complete means the cursor was reached; the record and everything
	// after it are already stored
	Complete
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Gate compares extracted fingerprints against the cursor, the fingerprint
// of the most recently stored post. Without a cursor it never completes.
type Gate struct {
	cursor    fingerprint.Fingerprint
	hasCursor bool
	matched   atomic.Bool
}

// NewGate creates a gate. A zero cursor means first harvest.
func NewGate(cursor fingerprint.Fingerprint) *Gate {
	return &Gate{cursor: cursor, hasCursor: !cursor.IsZero()}
}

// HasCursor reports whether early stopping is enabled
func (g *Gate) HasCursor() bool {
	return g.hasCursor
}

// Test decides one record. Records must be tested in feed order: once the
// cursor matches, every later record is Complete as well.
func (g *Gate) Test(p *models.Post) Verdict {
	if g.matched.Load() {
		return Complete
	}
	if p == nil || p.Fingerprint.IsZero() {
		return Reject
	}
	if g.hasCursor && p.Fingerprint == g.cursor {
		g.matched.Store(true)
		return Complete
	}
	return Accept
}

// Matches reports whether p carries the cursor fingerprint without
// recording a match. It lets a caller stop feeding work as soon as a
// result arrives, before earlier results have been tested.
func (g *Gate) Matches(p *models.Post) bool {
	return g.hasCursor && p != nil && p.Fingerprint == g.cursor
}

// Matched reports whether the cursor has been reached
func (g *Gate) Matched() bool {
	return g.matched.Load()
}

// Seen tracks identifiers, permalinks and content keys already submitted in
// this run so a post rendered twice is extracted once. Synthetic ids never
// repeat; posts without a permalink are matched by content key instead.
type Seen struct {
	mu       sync.Mutex
	ids      map[string]struct{}
	urls     map[string]struct{}
	contents map[string]struct{}
}

// NewSeen creates an empty set
func NewSeen() *Seen {
	return &Seen{
		ids:      make(map[string]struct{}),
		urls:     make(map[string]struct{}),
		contents: make(map[string]struct{}),
	}
}

// Contains reports whether the identity's id, url or content key was marked before
func (s *Seen) Contains(id models.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contains(id)
}

func (s *Seen) contains(id models.Identity) bool {
	if id.URL != "" {
		if _, ok := s.urls[id.URL]; ok {
			return true
		}
	}
	if id.ID != "" {
		if _, ok := s.ids[id.ID]; ok {
			return true
		}
	}
	if id.Content != "" {
		if _, ok := s.contents[id.Content]; ok {
			return true
		}
	}
	return false
}

// Mark records the identity and reports whether it was new
func (s *Seen) Mark(id models.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contains(id) {
		return false
	}
	if id.URL != "" {
		s.urls[id.URL] = struct{}{}
	}
	if id.ID != "" {
		s.ids[id.ID] = struct{}{}
	}
	if id.Content != "" {
		s.contents[id.Content] = struct{}{}
	}
	return true
}

// Len returns the number of distinct identifiers marked
func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
