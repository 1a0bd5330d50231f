package harvester

import (
	"context"

	"fbharvest/pkg/browser"
	"fbharvest/pkg/fingerprint"
	"fbharvest/pkg/models"
)

// CursorReader returns the fingerprint of the most recently stored post of a
// group, or a zero fingerprint when the group has none
type CursorReader interface {
	LatestFingerprint(ctx context.Context, group models.Group) (fingerprint.Fingerprint, error)
}

// Scroller exposes the feed's posts in rendering order
type Scroller interface {
	Open(ctx context.Context, groupURL string) error
	Visible(ctx context.Context) ([]browser.Element, error)
	Advance(ctx context.Context) ([]browser.Element, bool, error)
	Expand(ctx context.Context, post browser.Element) bool
}

// Identifier decides candidate plausibility on a live handle
type Identifier interface {
	Identify(el browser.Element) (models.Identity, bool)
}
