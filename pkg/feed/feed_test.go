package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"fbharvest/pkg/browser"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupURL = "https://www.facebook.com/groups/123456789"

func testOptions() Options {
	log := logger.NewNopLogger()
	return Options{
		FeedWait:    10 * time.Millisecond,
		ScrollWait:  20 * time.Millisecond,
		SettleDelay: 0,
		Poll:        time.Millisecond,
		Retry: &retry.Config{
			MaxAttempts: 3,
			Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		Logger: log,
	}
}

func newFeed(pageSize int, n int) (*browser.FakeSession, []*browser.FakeElement) {
	posts := make([]*browser.FakeElement, n)
	for i := range posts {
		posts[i] = browser.NewFakeElement("<div role=\"article\"></div>")
	}
	s := browser.NewFakeSession(PostSelector, pageSize, posts...)
	s.Add(FeedSelector, browser.NewFakeElement("<div role=\"feed\"></div>"))
	return s, posts
}

func TestChronologicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{groupURL, groupURL + "?sorting_setting=CHRONOLOGICAL"},
		{groupURL + "?ref=share", groupURL + "?ref=share&sorting_setting=CHRONOLOGICAL"},
		{groupURL + "?sorting_setting=RECENT_ACTIVITY", groupURL + "?sorting_setting=RECENT_ACTIVITY"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChronologicalURL(tt.in))
	}
}

func TestCheckSession(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{groupURL + "?sorting_setting=CHRONOLOGICAL", true},
		{"https://www.facebook.com/groups/devs/", true},
		{"https://www.facebook.com/login/?next=%2Fgroups%2F1", false},
		{"https://www.facebook.com/checkpoint/828281030927956/", false},
		{"https://www.facebook.com/groups/not_found/", false},
		{"https://www.facebook.com/", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := CheckSession(tt.url)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errs.Is(err, errs.ErrorTypeSessionInvalid))
			}
		})
	}
}

func TestOpen(t *testing.T) {
	s, _ := newFeed(2, 5)
	c := New(s, testOptions())

	require.NoError(t, c.Open(context.Background(), groupURL))
	assert.Equal(t, []string{groupURL + "?sorting_setting=CHRONOLOGICAL"}, s.Navigations())

	visible, err := c.Visible(context.Background())
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestOpenSessionInvalidIsNotRetried(t *testing.T) {
	s, _ := newFeed(2, 5)
	s.LandingURL = "https://www.facebook.com/login/"
	c := New(s, testOptions())

	err := c.Open(context.Background(), groupURL)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeSessionInvalid))
	assert.Len(t, s.Navigations(), 1)
}

func TestOpenRetriesTransientNavigation(t *testing.T) {
	s, _ := newFeed(2, 5)
	s.NavigateErrs = []error{
		errs.New(errs.ErrorTypeTimeout, "navigate", "slow"),
		errs.New(errs.ErrorTypeDriver, "navigate", "reset"),
	}
	c := New(s, testOptions())

	require.NoError(t, c.Open(context.Background(), groupURL))
	assert.Len(t, s.Navigations(), 3)
}

func TestOpenExhaustion(t *testing.T) {
	t.Run("navigation", func(t *testing.T) {
		s, _ := newFeed(2, 5)
		for i := 0; i < 3; i++ {
			s.NavigateErrs = append(s.NavigateErrs, errs.New(errs.ErrorTypeTimeout, "navigate", "slow"))
		}
		err := New(s, testOptions()).Open(context.Background(), groupURL)
		assert.True(t, errs.Is(err, errs.ErrorTypeExhausted))
	})

	t.Run("feed container", func(t *testing.T) {
		s := browser.NewFakeSession(PostSelector, 1)
		err := New(s, testOptions()).Open(context.Background(), groupURL)
		assert.True(t, errs.Is(err, errs.ErrorTypeExhausted))
	})
}

func TestAdvance(t *testing.T) {
	s, posts := newFeed(2, 5)
	c := New(s, testOptions())
	ctx := context.Background()
	require.NoError(t, c.Open(ctx, groupURL))

	handles, grew, err := c.Advance(ctx)
	require.NoError(t, err)
	assert.True(t, grew)
	require.Len(t, handles, 4)
	assert.Same(t, posts[0], handles[0])
	assert.Same(t, posts[3], handles[3])

	handles, grew, err = c.Advance(ctx)
	require.NoError(t, err)
	assert.True(t, grew)
	assert.Len(t, handles, 5)

	handles, grew, err = c.Advance(ctx)
	require.NoError(t, err)
	assert.False(t, grew)
	assert.Len(t, handles, 5)
	assert.Equal(t, 3, s.Scrolls())
}

func TestAdvancePacesScrolls(t *testing.T) {
	s, _ := newFeed(1, 5)
	var mu sync.Mutex
	var at []time.Time
	s.OnScroll = func(int) {
		mu.Lock()
		at = append(at, time.Now())
		mu.Unlock()
	}

	opts := testOptions()
	opts.MinScrollInterval = 80 * time.Millisecond
	c := New(s, opts)
	ctx := context.Background()
	require.NoError(t, c.Open(ctx, groupURL))

	_, _, err := c.Advance(ctx)
	require.NoError(t, err)
	_, _, err = c.Advance(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, at, 2)
	assert.GreaterOrEqual(t, at[1].Sub(at[0]), 70*time.Millisecond)
}

func TestAdvanceRetriesScroll(t *testing.T) {
	s, _ := newFeed(1, 3)
	s.ScrollErrs = []error{errs.New(errs.ErrorTypeDriver, "scroll", "target busy")}
	c := New(s, testOptions())
	ctx := context.Background()
	require.NoError(t, c.Open(ctx, groupURL))

	handles, grew, err := c.Advance(ctx)
	require.NoError(t, err)
	assert.True(t, grew)
	assert.Len(t, handles, 2)
}

func TestAdvanceCancelled(t *testing.T) {
	s, _ := newFeed(1, 3)
	c := New(s, testOptions())
	require.NoError(t, c.Open(context.Background(), groupURL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Advance(ctx)
	assert.True(t, errs.Is(err, errs.ErrorTypeCancelled))
	assert.Equal(t, 0, s.Scrolls())
}

func TestDismissOverlays(t *testing.T) {
	s, _ := newFeed(1, 1)
	hidden := browser.NewFakeElement("<div role=dialog></div>")
	hidden.Hidden = true
	closeBtn := browser.NewFakeElement("<div role=button aria-label=Close></div>")
	dialog := browser.NewFakeElement("<div role=dialog></div>").
		WithChildren("div[role='button'][aria-label='Close']", closeBtn)
	s.Add("div[role='dialog']", hidden, dialog)

	c := New(s, testOptions())
	assert.True(t, c.DismissOverlays())
	assert.Equal(t, 1, closeBtn.Clicks())
}

func TestDismissOverlaysIsNonFatal(t *testing.T) {
	s, _ := newFeed(1, 1)
	btn := browser.NewFakeElement("<button aria-label=Close></button>")
	btn.ClickErrs = []error{errs.New(errs.ErrorTypeClickIntercepted, "click", "covered")}
	dialog := browser.NewFakeElement("<div></div>").WithChildren("button[aria-label='Close']", btn)
	s.Add("div[data-testid='dialog']", dialog)
	s.QueryErrs["div[role='dialog']"] = errs.New(errs.ErrorTypeDriver, "query", "boom")

	c := New(s, testOptions())
	assert.False(t, c.DismissOverlays())

	assert.Equal(t, 0, btn.Clicks())

	// the intercepting layer is gone on the next scroll step
	assert.True(t, c.DismissOverlays())
	assert.Equal(t, 1, btn.Clicks())
}

func TestExpand(t *testing.T) {
	s, _ := newFeed(1, 1)
	c := New(s, testOptions())
	ctx := context.Background()

	seeMore := browser.NewFakeElement("<div role=button>See more</div>")
	post := browser.NewFakeElement("<div></div>").WithChildren(SeeMoreSelector, seeMore)
	assert.True(t, c.Expand(ctx, post))
	assert.Equal(t, 1, seeMore.Clicks())

	assert.False(t, c.Expand(ctx, browser.NewFakeElement("<div></div>")))

	blocked := browser.NewFakeElement("<div role=button>See more</div>")
	blocked.ClickErrs = []error{errs.New(errs.ErrorTypeClickIntercepted, "click", "covered")}
	post = browser.NewFakeElement("<div></div>").WithChildren(SeeMoreSelector, blocked)
	assert.False(t, c.Expand(ctx, post))

	gone := browser.NewFakeElement("<div></div>")
	gone.SetStale(true)
	assert.False(t, c.Expand(ctx, gone))
}
