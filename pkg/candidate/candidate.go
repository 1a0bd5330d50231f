// Package candidate decides whether a rendered feed element is a post and
// derives its tentative identity.
package candidate

import (
	"net/url"
	"regexp"
	"strings"

	"fbharvest/pkg/browser"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/fingerprint"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"

	"github.com/google/uuid"
)

// PermalinkSelector matches anchors that may carry the post permalink
const PermalinkSelector = "xpath=.//a[contains(@href, '/posts/')] | .//abbr/ancestor::a"

// SyntheticPrefix marks identifiers generated for posts without a permalink
const SyntheticPrefix = "generated_"

const (
	minTextLength = 5
	minDivCount   = 3
)

var (
	idSegmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	longDigitPattern = regexp.MustCompile(`/(\d{10,})/?`)
)

// Identifier inspects live post handles. It runs on the session goroutine.
type Identifier struct {
	logger logger.Logger
	newID  func() string
}

// New creates an identifier
func New(log logger.Logger) *Identifier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Identifier{
		logger: log.WithField("component", "candidate"),
		newID:  SyntheticID,
	}
}

// Identify reports whether el is plausibly a post and returns its identity.
// Any read failure, a detached node included, means "not a candidate".
func (i *Identifier) Identify(el browser.Element) (models.Identity, bool) {
	var id models.Identity

	links, err := el.QueryAll(PermalinkSelector)
	if err != nil {
		i.skip(err)
		return id, false
	}

	permalink := false
	if len(links) > 0 {
		href, err := links[0].Attribute("href")
		if err != nil {
			i.skip(err)
			return id, false
		}
		var postURL string
		postURL, id.ID, permalink = ParsePermalink(href)
		if permalink {
			id.URL = postURL
		}
	}

	if !permalink {
		ok, err := hasSubstance(el)
		if err != nil {
			i.skip(err)
			return models.Identity{}, false
		}
		if !ok {
			logger.LogCandidateSkipped(i.logger, "no content indicators", nil)
			return models.Identity{}, false
		}
	}

	if id.ID == "" {
		key, err := ContentKey(el)
		if err != nil {
			i.skip(err)
			return models.Identity{}, false
		}
		id.ID = i.newID()
		id.Synthetic = true
		id.Content = key
	}
	return id, true
}

// ContentKey derives a stable key for a post without a permalink from its
// rendered text, or from its markup when it renders no text.
func ContentKey(el browser.Element) (string, error) {
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	if fingerprint.Normalize(text) != "" {
		return "text:" + fingerprint.Of(text).String(), nil
	}
	html, err := el.OuterHTML()
	if err != nil {
		return "", err
	}
	return "html:" + fingerprint.Of(html).String(), nil
}

func (i *Identifier) skip(err error) {
	reason := string(errs.TypeOf(err))
	if reason == string(errs.ErrorTypeUnknown) {
		reason = "read failed"
	}
	logger.LogCandidateSkipped(i.logger, reason, err)
}

// hasSubstance applies the structural fallback for posts without a
// discoverable permalink: some text, an image, a link, or enough nesting.
func hasSubstance(el browser.Element) (bool, error) {
	text, err := el.Text()
	if err != nil {
		return false, err
	}
	if len(strings.TrimSpace(text)) > minTextLength {
		return true, nil
	}

	for _, probe := range []struct {
		selector string
		min      int
	}{
		{"img", 1},
		{"a", 1},
		{"div", minDivCount + 1},
	} {
		found, err := el.QueryAll(probe.selector)
		if err != nil {
			return false, err
		}
		if len(found) >= probe.min {
			return true, nil
		}
	}
	return false, nil
}

// ParsePermalink extracts the canonical post url and identifier from an
// anchor href. isPost is true only for facebook.com links with a /posts/
// path; an identifier may still be returned for other facebook.com links
// when the path carries a long numeric id.
func ParsePermalink(href string) (postURL, id string, isPost bool) {
	if href == "" {
		return "", "", false
	}
	u, err := url.Parse(href)
	if err != nil || !strings.Contains(u.Host, "facebook.com") {
		return "", "", false
	}

	if strings.Contains(u.Path, "/posts/") {
		isPost = true
		postURL = u.Scheme + "://" + u.Host + u.Path

		parts := strings.Split(u.Path, "/")
		for n, p := range parts {
			if p == "posts" && n+1 < len(parts) && idSegmentPattern.MatchString(parts[n+1]) {
				id = parts[n+1]
				break
			}
		}

		if id == "" {
			q := u.Query()
			for _, key := range []string{"story_fbid", "fbid", "id"} {
				if v := strings.TrimSpace(q.Get(key)); v != "" {
					id = v
					break
				}
			}
		}
	}

	if id == "" {
		if m := longDigitPattern.FindStringSubmatch(u.Path); m != nil {
			id = m[1]
		}
	}
	return postURL, id, isPost
}

// SyntheticID returns a random identifier for within-run candidate dedup.
// It never identifies content.
func SyntheticID() string {
	return SyntheticPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// IsSynthetic reports whether id was produced by SyntheticID
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, SyntheticPrefix)
}
