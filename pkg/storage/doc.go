// Package storage persists harvested posts and the per-group cursor.
//
// Posts live in one table keyed by group, with the content fingerprint unique
// within a group so re-offering a post is a no-op. The cursor of a group is
// the fingerprint of its post with the highest internal id; callers insert
// each harvest oldest first to keep that the newest post.
//
// Both sqlite3 and postgres are supported through sqlx:
//
//	store, err := storage.Open(ctx, cfg.Storage, log)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	group, err := store.EnsureGroup(ctx, models.NewGroup("Rentals", url))
//	n, err := store.SavePosts(ctx, group, result.Posts)
package storage
