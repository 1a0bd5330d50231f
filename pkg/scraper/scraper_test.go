package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fbharvest/pkg/browser"
	"fbharvest/pkg/candidate"
	"fbharvest/pkg/checkpoint"
	"fbharvest/pkg/config"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/export"
	"fbharvest/pkg/feed"
	"fbharvest/pkg/harvester"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"
	"fbharvest/pkg/retry"
	"fbharvest/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupURL = "https://www.facebook.com/groups/123456789"

func fbPost(id, text string) *browser.FakeElement {
	url := fmt.Sprintf("%s/posts/%s/", groupURL, id)
	html := fmt.Sprintf(`<div role="article">
  <a href="%s">2h</a>
  <div data-ad-rendering-role="story_message"><div><span>%s</span></div></div>
</div>`, url, text)
	link := browser.NewFakeElement("").WithAttr("href", url)
	return browser.NewFakeElement(html).WithChildren(candidate.PermalinkSelector, link)
}

// feedOf builds a fresh session factory over texts listed newest first
type feedOf struct {
	mu       sync.Mutex
	texts    []string
	landing  string
	err      error
	sessions []*browser.FakeSession
}

func (f *feedOf) open(ctx context.Context) (browser.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	posts := make([]*browser.FakeElement, len(f.texts))
	for i, text := range f.texts {
		posts[i] = fbPost(fmt.Sprintf("%d", 500+len(f.texts)-i), text)
	}
	s := browser.NewFakeSession(feed.PostSelector, 2, posts...)
	s.Add(feed.FeedSelector, browser.NewFakeElement(`<div role="feed"></div>`))
	s.LandingURL = f.landing
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *feedOf) set(texts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = texts
}

func harvestOptions() harvester.Options {
	log := logger.NewNopLogger()
	return harvester.Options{
		Workers:           3,
		MaxScrollAttempts: 20,
		NoGrowthLimit:     2,
		DrainPoll:         2 * time.Millisecond,
		DrainTimeout:      2 * time.Second,
		Feed: feed.Options{
			FeedWait:   10 * time.Millisecond,
			ScrollWait: 2 * time.Millisecond,
			Poll:       time.Millisecond,
			Retry: &retry.Config{
				MaxAttempts: 2,
				Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
				RetryIf:     retry.DefaultRetryIf,
				Logger:      log,
			},
			Logger: log,
		},
	}
}

func newTestScraper(t *testing.T, sessions SessionFactory, opts Options) (*Scraper, *storage.Store) {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := storage.Open(context.Background(),
		config.StorageConfig{Driver: "sqlite3", DSN: ":memory:"}, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.NewNopLogger()
	h := harvester.New(store, harvestOptions(), log)
	return NewWithHarvester(store, sessions, h, opts, log), store
}

func TestRunGroupIsIncremental(t *testing.T) {
	ctx := context.Background()
	f := &feedOf{}
	f.set("third", "second", "first")
	s, store := newTestScraper(t, f.open, Options{MaxRecords: 10})
	g := models.NewGroup("Rentals", groupURL)

	out, err := s.RunGroup(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Stored)
	assert.Equal(t, harvester.StopExhausted, out.Result.Stop)
	assert.NotZero(t, out.Group.ID)

	f.set("fifth", "fourth", "third", "second", "first")
	out, err = s.RunGroup(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, harvester.StopDedup, out.Result.Stop)
	assert.Equal(t, 2, out.Stored)

	recent, err := store.RecentPosts(ctx, out.Group, 10)
	require.NoError(t, err)
	var texts []string
	for _, p := range recent {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"fifth", "fourth", "third", "second", "first"}, texts)

	for _, session := range f.sessions {
		assert.True(t, session.Closed())
	}

	mgr, err := checkpoint.NewManager(out.Group.Key)
	require.NoError(t, err)
	cp, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 2, cp.TotalRuns)
	assert.Equal(t, 5, cp.TotalStored)
	assert.Equal(t, string(harvester.StopDedup), cp.LastStop)
	assert.Equal(t, recent[0].Fingerprint.String(), cp.Cursor)
}

func TestRunGroupExport(t *testing.T) {
	f := &feedOf{}
	f.set("newer", "older")
	dir := t.TempDir()
	s, _ := newTestScraper(t, f.open, Options{
		MaxRecords: 10,
		ExportPath: filepath.Join(dir, "{group}.json"),
	})

	out, err := s.RunGroup(context.Background(), models.NewGroup("Rentals", groupURL))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Group_123456789.json"), out.Export)

	doc, err := export.Load(out.Export)
	require.NoError(t, err)
	require.Len(t, doc.Posts, 2)
	assert.Equal(t, "older", doc.Posts[0].Text)
	assert.Equal(t, "newer", doc.Posts[1].Text)
}

func TestRunGroupFailureIsRecorded(t *testing.T) {
	f := &feedOf{err: errs.New(errs.ErrorTypeDriver, "launch", "connection refused")}
	s, _ := newTestScraper(t, f.open, Options{MaxRecords: 10})
	g := models.NewGroup("Rentals", groupURL)

	out, err := s.RunGroup(context.Background(), g)
	require.Error(t, err)
	assert.Equal(t, err, out.Err)

	mgr, err := checkpoint.NewManager(g.Key)
	require.NoError(t, err)
	cp, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.FailedRuns)
	assert.Contains(t, cp.LastError, "connection refused")
}

func TestRunAll(t *testing.T) {
	groups := []models.Group{
		models.NewGroup("A", "https://www.facebook.com/groups/1"),
		models.NewGroup("B", "https://www.facebook.com/groups/2"),
	}

	tests := []struct {
		name        string
		feed        *feedOf
		wantRuns    int
		wantErrType errs.ErrorType
	}{
		{
			name:     "all groups succeed",
			feed:     &feedOf{texts: []string{"hello"}},
			wantRuns: 2,
		},
		{
			name:     "failures do not stop later groups",
			feed:     &feedOf{err: errors.New("chromium crashed")},
			wantRuns: 2,
		},
		{
			name:        "invalid session stops the run",
			feed:        &feedOf{texts: []string{"hello"}, landing: "https://www.facebook.com/login/"},
			wantRuns:    1,
			wantErrType: errs.ErrorTypeSessionInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScraper(t, tt.feed.open, Options{MaxRecords: 5, GroupDelay: time.Millisecond})

			outcomes, err := s.RunAll(context.Background(), groups)
			assert.Len(t, outcomes, tt.wantRuns)
			if tt.wantErrType != "" {
				assert.True(t, errs.Is(err, tt.wantErrType))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	t.Run("requires groups", func(t *testing.T) {
		s, _ := newTestScraper(t, (&feedOf{}).open, Options{MaxRecords: 5})
		err := s.Watch(context.Background(), nil, nil)
		assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
	})

	t.Run("stops cleanly on cancel", func(t *testing.T) {
		f := &feedOf{texts: []string{"hello"}}
		s, _ := newTestScraper(t, f.open, Options{MaxRecords: 5, PollInterval: time.Millisecond})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cycles := 0
		err := s.Watch(ctx, []models.Group{models.NewGroup("A", groupURL)}, func(outcomes []*Outcome) {
			cycles++
			require.Len(t, outcomes, 1)
			if cycles == 2 {
				cancel()
			}
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, cycles)
	})

	t.Run("invalid session ends watching", func(t *testing.T) {
		f := &feedOf{texts: []string{"hello"}, landing: "https://www.facebook.com/login/"}
		s, _ := newTestScraper(t, f.open, Options{MaxRecords: 5, PollInterval: time.Millisecond})

		err := s.Watch(context.Background(), []models.Group{models.NewGroup("A", groupURL)}, nil)
		assert.True(t, errs.Is(err, errs.ErrorTypeSessionInvalid))
	})
}
