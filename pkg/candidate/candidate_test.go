package candidate

import (
	"testing"

	"fbharvest/pkg/browser"
	"fbharvest/pkg/fingerprint"
	"fbharvest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermalink(t *testing.T) {
	tests := []struct {
		name   string
		href   string
		url    string
		id     string
		isPost bool
	}{
		{
			name:   "numeric post id",
			href:   "https://www.facebook.com/groups/123/posts/987654321/?__cft__=abc",
			url:    "https://www.facebook.com/groups/123/posts/987654321/",
			id:     "987654321",
			isPost: true,
		},
		{
			name:   "opaque post id",
			href:   "https://www.facebook.com/groups/devs/posts/pfbid02abc.XY_z-1/",
			url:    "https://www.facebook.com/groups/devs/posts/pfbid02abc.XY_z-1/",
			id:     "pfbid02abc.XY_z-1",
			isPost: true,
		},
		{
			name:   "query id",
			href:   "https://www.facebook.com/groups/devs/posts/?story_fbid=555&id=1",
			url:    "https://www.facebook.com/groups/devs/posts/",
			id:     "555",
			isPost: true,
		},
		{
			name: "not a post but long numeric path",
			href: "https://www.facebook.com/photo/1234567890123/",
			id:   "1234567890123",
		},
		{
			name: "other host",
			href: "https://example.com/groups/1/posts/2/",
		},
		{
			name: "empty",
		},
		{
			name: "relative",
			href: "/groups/1/posts/2/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, id, isPost := ParsePermalink(tt.href)
			assert.Equal(t, tt.url, url)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.isPost, isPost)
		})
	}
}

func TestSyntheticID(t *testing.T) {
	a := SyntheticID()
	b := SyntheticID()
	assert.Len(t, a, len(SyntheticPrefix)+12)
	assert.True(t, IsSynthetic(a))
	assert.NotEqual(t, a, b)
	assert.False(t, IsSynthetic("987654321"))
}

func permalinkPost(href string) *browser.FakeElement {
	anchor := browser.NewFakeElement("<a></a>").WithAttr("href", href)
	return browser.NewFakeElement("<div></div>").WithChildren(PermalinkSelector, anchor)
}

func TestIdentify(t *testing.T) {
	id := New(logger.NewNopLogger())

	t.Run("permalink", func(t *testing.T) {
		got, ok := id.Identify(permalinkPost("https://www.facebook.com/groups/1/posts/42/"))
		require.True(t, ok)
		assert.Equal(t, "42", got.ID)
		assert.Equal(t, "https://www.facebook.com/groups/1/posts/42/", got.URL)
		assert.False(t, got.Synthetic)
		assert.Empty(t, got.Content)
	})

	t.Run("structural text", func(t *testing.T) {
		el := browser.NewFakeElement("<div></div>").WithText("  a real post body  ")
		got, ok := id.Identify(el)
		require.True(t, ok)
		assert.Empty(t, got.URL)
		assert.True(t, got.Synthetic)
		assert.True(t, IsSynthetic(got.ID))
		assert.Equal(t, "text:"+fingerprint.Of("a real post body").String(), got.Content)
	})

	t.Run("structural image", func(t *testing.T) {
		el := browser.NewFakeElement("<div></div>").WithChildren("img", browser.NewFakeElement("<img>"))
		_, ok := id.Identify(el)
		assert.True(t, ok)
	})

	t.Run("structural divs", func(t *testing.T) {
		el := browser.NewFakeElement("<div></div>")
		for i := 0; i < 4; i++ {
			el.WithChildren("div", browser.NewFakeElement("<div></div>"))
		}
		_, ok := id.Identify(el)
		assert.True(t, ok)
	})

	t.Run("too few divs", func(t *testing.T) {
		el := browser.NewFakeElement("<div></div>").WithText("hi")
		for i := 0; i < 3; i++ {
			el.WithChildren("div", browser.NewFakeElement("<div></div>"))
		}
		_, ok := id.Identify(el)
		assert.False(t, ok)
	})

	t.Run("non post link keeps numeric id", func(t *testing.T) {
		el := permalinkPost("https://www.facebook.com/photo/1234567890123/")
		el.WithChildren("a", browser.NewFakeElement("<a></a>"))
		got, ok := id.Identify(el)
		require.True(t, ok)
		assert.Equal(t, "1234567890123", got.ID)
		assert.Empty(t, got.URL)
		assert.False(t, got.Synthetic)
	})
}

func TestIdentifySyntheticKeyIsStable(t *testing.T) {
	id := New(logger.NewNopLogger())

	first, ok := id.Identify(browser.NewFakeElement("<div></div>").WithText("selling a bike,\n barely used"))
	require.True(t, ok)
	again, ok := id.Identify(browser.NewFakeElement("<div></div>").WithText("selling a bike, barely used "))
	require.True(t, ok)
	other, ok := id.Identify(browser.NewFakeElement("<div></div>").WithText("selling a car, barely used"))
	require.True(t, ok)

	assert.NotEqual(t, first.ID, again.ID, "synthetic ids are per render")
	assert.Equal(t, first.Content, again.Content)
	assert.NotEqual(t, first.Content, other.Content)

	img := browser.NewFakeElement(`<div><img src="a.jpg"></div>`).WithChildren("img", browser.NewFakeElement("<img>"))
	got, ok := id.Identify(img)
	require.True(t, ok)
	assert.Equal(t, "html:"+fingerprint.Of(`<div><img src="a.jpg"></div>`).String(), got.Content)
}

func TestIdentifyStaleIsNotACandidate(t *testing.T) {
	log := logger.NewTestLogger()
	id := New(log)

	stale := permalinkPost("https://www.facebook.com/groups/1/posts/42/")
	stale.SetStale(true)
	_, ok := id.Identify(stale)
	assert.False(t, ok)

	anchor := browser.NewFakeElement("<a></a>").WithAttr("href", "https://www.facebook.com/groups/1/posts/43/")
	anchor.SetStale(true)
	el := browser.NewFakeElement("<div></div>").WithChildren(PermalinkSelector, anchor)
	_, ok = id.Identify(el)
	assert.False(t, ok)

	assert.True(t, log.HasMessage("Candidate skipped"))
	assert.False(t, log.HasError())

	sibling := permalinkPost("https://www.facebook.com/groups/1/posts/44/")
	got, ok := id.Identify(sibling)
	require.True(t, ok)
	assert.Equal(t, "44", got.ID)
}
