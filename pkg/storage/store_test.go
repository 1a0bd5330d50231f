package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbharvest/pkg/config"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/fingerprint"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"
)

var group = models.NewGroup("Rentals", "https://www.facebook.com/groups/123456789/")

func newPost(id, text string) *models.Post {
	return &models.Post{
		FacebookID:  id,
		URL:         "https://www.facebook.com/groups/123456789/posts/" + id + "/",
		Text:        text,
		Fingerprint: fingerprint.Of(text),
		HarvestedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), config.StorageConfig{Driver: "sqlite3", DSN: ":memory:"}, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), logger.NewNopLogger()), mock
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "mysql", DSN: "x"}, logger.NewNopLogger())
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	g, err := s.EnsureGroup(ctx, group)
	require.NoError(t, err)
	assert.NotZero(t, g.ID)
	assert.Equal(t, "Group_123456789", g.Key)

	again, err := s.EnsureGroup(ctx, group)
	require.NoError(t, err)
	assert.Equal(t, g.ID, again.ID)

	cursor, err := s.LatestFingerprint(ctx, g)
	require.NoError(t, err)
	assert.True(t, cursor.IsZero(), "empty group has no cursor")

	// oldest first
	n, err := s.SavePosts(ctx, g, []*models.Post{newPost("1", "first"), newPost("2", "second")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cursor, err = s.LatestFingerprint(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, fingerprint.Of("second"), cursor)

	recent, err := s.RecentPosts(ctx, g, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Text)
	assert.Equal(t, "2", recent[0].FacebookID)
	assert.Equal(t, g.Key, recent[0].GroupKey)
	assert.True(t, recent[0].HarvestedAt.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.Greater(t, recent[0].ID, recent[1].ID)
}

func TestSavePostsIgnoresKnownFingerprints(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	g, err := s.EnsureGroup(ctx, group)
	require.NoError(t, err)

	_, err = s.SavePosts(ctx, g, []*models.Post{newPost("1", "hello world")})
	require.NoError(t, err)

	// same content under another id, whitespace differs
	n, err := s.SavePosts(ctx, g, []*models.Post{newPost("9", "hello\n world"), newPost("3", "fresh")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.CountPosts(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// fingerprints are unique per group only
	other, err := s.EnsureGroup(ctx, models.NewGroup("Jobs", "https://www.facebook.com/groups/42/"))
	require.NoError(t, err)
	n, err = s.SavePosts(ctx, other, []*models.Post{newPost("1", "hello world")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestSavePostsSkipsUnfingerprinted(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	g, err := s.EnsureGroup(ctx, group)
	require.NoError(t, err)

	n, err := s.SavePosts(ctx, g, []*models.Post{nil, {Text: "no hash"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLatestFingerprint(t *testing.T) {
	ctx := context.Background()
	hash := fingerprint.Of("latest").String()

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    fingerprint.Fingerprint
		wantErr bool
	}{
		{
			name: "stored cursor",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT content_hash FROM posts").
					WithArgs(group.Key).
					WillReturnRows(sqlmock.NewRows([]string{"content_hash"}).AddRow(hash))
			},
			want: fingerprint.Fingerprint(hash),
		},
		{
			name: "no rows",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT content_hash FROM posts").
					WithArgs(group.Key).
					WillReturnRows(sqlmock.NewRows([]string{"content_hash"}))
			},
		},
		{
			name: "malformed value",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT content_hash FROM posts").
					WithArgs(group.Key).
					WillReturnRows(sqlmock.NewRows([]string{"content_hash"}).AddRow("not-a-digest"))
			},
		},
		{
			name: "database error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT content_hash FROM posts").
					WithArgs(group.Key).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMock(t)
			tt.setup(mock)

			got, err := s.LatestFingerprint(ctx, group)
			if tt.wantErr {
				assert.True(t, errs.Is(err, errs.ErrorTypeStorage))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSavePostsTransaction(t *testing.T) {
	ctx := context.Background()
	posts := []*models.Post{newPost("1", "a"), newPost("2", "b")}

	t.Run("commits new and known posts", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO posts").
			WithArgs(group.Key, "1", posts[0].URL, "a", posts[0].Fingerprint.String(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"internal_post_id"}).AddRow(7))
		mock.ExpectQuery("INSERT INTO posts").
			WithArgs(group.Key, "2", posts[1].URL, "b", posts[1].Fingerprint.String(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"internal_post_id"}))
		mock.ExpectExec("UPDATE harvest_groups").
			WithArgs(sqlmock.AnyArg(), group.Key).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		n, err := s.SavePosts(ctx, group, posts)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on insert failure", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO posts").WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()

		_, err := s.SavePosts(ctx, group, posts)
		assert.True(t, errs.Is(err, errs.ErrorTypeStorage))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
