package harvester

import (
	"iter"
	"time"

	"fbharvest/pkg/models"
)

// StopReason says why a harvest ended
type StopReason string

const (
	// StopCount means the requested number of records was accepted
	StopCount StopReason = "count"
	// StopDedup means a record matched the stored cursor
	StopDedup StopReason = "dedup_match"
	// StopExhausted means consecutive scrolls rendered no new posts
	StopExhausted StopReason = "feed_exhausted"
	// StopCeiling means the scroll attempt ceiling was reached
	StopCeiling StopReason = "scroll_ceiling"
)

// Stats counts what happened during one harvest. Skipped is the largest
// number of unusable handles met in a single pass over the rendered feed.
type Stats struct {
	Scrolls    int           `json:"scrolls"`
	Candidates int           `json:"candidates"`
	Skipped    int           `json:"skipped"`
	Duplicates int           `json:"duplicates"`
	Submitted  int           `json:"submitted"`
	Failed     int           `json:"failed"`
	Rejected   int           `json:"rejected"`
	Accepted   int           `json:"accepted"`
	Abandoned  int           `json:"abandoned"`
	Duration   time.Duration `json:"duration"`
}

// Result is the outcome of one successful harvest. Posts are ordered oldest
// first so sequential persistence gives newer posts higher storage ids.
type Result struct {
	Group models.Group
	Posts []*models.Post
	Stop  StopReason
	Stats Stats
}

// All streams the posts oldest first
func (r *Result) All() iter.Seq[*models.Post] {
	return func(yield func(*models.Post) bool) {
		for _, p := range r.Posts {
			if !yield(p) {
				return
			}
		}
	}
}

// Len returns the number of harvested posts
func (r *Result) Len() int {
	return len(r.Posts)
}
