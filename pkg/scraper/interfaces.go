package scraper

import (
	"context"

	"fbharvest/pkg/browser"
	"fbharvest/pkg/harvester"
	"fbharvest/pkg/models"
)

// Store is the persistence the scraper needs for one group run
type Store interface {
	harvester.CursorReader
	EnsureGroup(ctx context.Context, g models.Group) (models.Group, error)
	SavePosts(ctx context.Context, g models.Group, posts []*models.Post) (int, error)
}

// SessionFactory opens a fresh browser session
type SessionFactory func(ctx context.Context) (browser.Session, error)
