package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"fbharvest/pkg/config"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/fingerprint"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	pingTimeout            = 5 * time.Second
)

// identity column per driver
var idColumn = map[string]string{
	"sqlite3":  "INTEGER PRIMARY KEY AUTOINCREMENT",
	"postgres": "BIGSERIAL PRIMARY KEY",
}

// StoredPost is a persisted record with its internal id
type StoredPost struct {
	ID       int64  `db:"internal_post_id" json:"id"`
	GroupKey string `db:"group_key" json:"group_key"`
	models.Post
}

// Store persists groups and harvested posts. Posts of every group share one
// table partitioned by group key; a fingerprint is unique within its group.
type Store struct {
	db     *sqlx.DB
	driver string
	logger logger.Logger
}

// Open connects to the configured database and creates the schema
func Open(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (*Store, error) {
	if _, ok := idColumn[cfg.Driver]; !ok {
		return nil, errs.New(errs.ErrorTypeConfig, "open storage", fmt.Sprintf("unsupported driver %q", cfg.Driver))
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, "open storage", err)
	}

	if cfg.Driver == "sqlite3" {
		// one writer; also keeps an in-memory database on a single connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.ErrorTypeStorage, "ping storage", err)
	}

	s := New(db, log)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection
func New(db *sqlx.DB, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	driver := db.DriverName()
	if _, ok := idColumn[driver]; !ok {
		driver = "sqlite3"
	}
	return &Store{
		db:     db,
		driver: driver,
		logger: log.WithField("component", "storage"),
	}
}

// Migrate creates the tables when missing
func (s *Store) Migrate(ctx context.Context) error {
	id := idColumn[s.driver]
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS harvest_groups (
			group_id %s,
			group_name TEXT NOT NULL DEFAULT '',
			group_url TEXT NOT NULL UNIQUE,
			group_key TEXT NOT NULL UNIQUE,
			last_harvested_at TIMESTAMP
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS posts (
			internal_post_id %s,
			group_key TEXT NOT NULL,
			facebook_post_id TEXT NOT NULL DEFAULT '',
			post_url TEXT NOT NULL DEFAULT '',
			post_content_raw TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			scraped_at TIMESTAMP NOT NULL,
			UNIQUE (group_key, content_hash)
		)`, id),
		`CREATE INDEX IF NOT EXISTS idx_posts_group ON posts (group_key, internal_post_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, "migrate", err)
		}
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureGroup registers the group if it is new and returns the stored row
func (s *Store) EnsureGroup(ctx context.Context, g models.Group) (models.Group, error) {
	if g.Key == "" {
		g.Key = models.GroupKey(g.URL)
	}

	insert := s.db.Rebind(`INSERT INTO harvest_groups (group_name, group_url, group_key)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, insert, g.Name, g.URL, g.Key); err != nil {
		return g, errs.Wrap(errs.ErrorTypeStorage, "register group", err)
	}

	var stored models.Group
	query := s.db.Rebind(`SELECT group_id, group_name, group_url, group_key
		FROM harvest_groups WHERE group_key = ?`)
	if err := s.db.GetContext(ctx, &stored, query, g.Key); err != nil {
		return g, errs.Wrap(errs.ErrorTypeStorage, "load group", err)
	}
	return stored, nil
}

// Groups lists registered groups by id
func (s *Store) Groups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.SelectContext(ctx, &groups, `SELECT group_id, group_name, group_url, group_key
		FROM harvest_groups ORDER BY group_id`)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, "list groups", err)
	}
	return groups, nil
}

// LatestFingerprint returns the fingerprint of the group's post with the
// highest internal id, or a zero fingerprint when nothing is stored
func (s *Store) LatestFingerprint(ctx context.Context, g models.Group) (fingerprint.Fingerprint, error) {
	var hash string
	query := s.db.Rebind(`SELECT content_hash FROM posts
		WHERE group_key = ? AND content_hash <> ''
		ORDER BY internal_post_id DESC LIMIT 1`)

	err := s.db.GetContext(ctx, &hash, query, g.Key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeStorage, "read cursor", err)
	}

	fp, ok := fingerprint.Parse(strings.TrimSpace(hash))
	if !ok {
		s.logger.WarnWithFields("Ignoring malformed stored fingerprint", map[string]interface{}{
			"group": g.Key,
			"hash":  hash,
		})
		return "", nil
	}
	return fp, nil
}

// SavePosts inserts posts in the given order inside one transaction. Posts
// must be ordered oldest first so newer posts get higher ids. A post whose
// fingerprint is already stored for the group is skipped. It returns the
// number of new rows.
func (s *Store) SavePosts(ctx context.Context, g models.Group, posts []*models.Post) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, "begin", err)
	}
	defer tx.Rollback()

	insert := tx.Rebind(`INSERT INTO posts
		(group_key, facebook_post_id, post_url, post_content_raw, content_hash, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_key, content_hash) DO NOTHING
		RETURNING internal_post_id`)

	inserted := 0
	for _, p := range posts {
		if p == nil || p.Fingerprint.IsZero() {
			continue
		}
		harvested := p.HarvestedAt
		if harvested.IsZero() {
			harvested = time.Now().UTC()
		}

		var id int64
		err := tx.QueryRowxContext(ctx, insert,
			g.Key, p.FacebookID, p.URL, p.Text, p.Fingerprint.String(), harvested,
		).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			s.logger.DebugWithFields("Post already stored", map[string]interface{}{
				"group":       g.Key,
				"fingerprint": p.Fingerprint.String(),
			})
		case err != nil:
			return 0, errs.Wrap(errs.ErrorTypeStorage, "insert post", err)
		default:
			inserted++
		}
	}

	touch := tx.Rebind(`UPDATE harvest_groups SET last_harvested_at = ? WHERE group_key = ?`)
	if _, err := tx.ExecContext(ctx, touch, time.Now().UTC(), g.Key); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, "touch group", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, "commit", err)
	}

	s.logger.InfoWithFields("Stored posts", map[string]interface{}{
		"group":    g.Key,
		"offered":  len(posts),
		"inserted": inserted,
	})
	return inserted, nil
}

// RecentPosts returns up to limit posts of the group, newest first
func (s *Store) RecentPosts(ctx context.Context, g models.Group, limit int) ([]StoredPost, error) {
	if limit <= 0 {
		limit = 10
	}
	var posts []StoredPost
	query := s.db.Rebind(`SELECT internal_post_id, group_key, facebook_post_id, post_url,
		post_content_raw, content_hash, scraped_at
		FROM posts WHERE group_key = ?
		ORDER BY internal_post_id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &posts, query, g.Key, limit); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, "recent posts", err)
	}
	return posts, nil
}

// CountPosts returns the number of stored posts of the group
func (s *Store) CountPosts(ctx context.Context, g models.Group) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM posts WHERE group_key = ?`)
	if err := s.db.GetContext(ctx, &n, query, g.Key); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, "count posts", err)
	}
	return n, nil
}
