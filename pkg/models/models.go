package models

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"fbharvest/pkg/fingerprint"
)

// NoText is the body text recorded when no text container was found
const NoText = "N/A"

// Post is one harvested record. It is produced once by the extraction worker
// and never modified afterwards.
type Post struct {
	FacebookID       string                  `json:"facebook_post_id,omitempty" db:"facebook_post_id"`
	URL              string                  `json:"post_url,omitempty" db:"post_url"`
	Text             string                  `json:"content_text" db:"post_content_raw"`
	AuthorName       string                  `json:"post_author_name,omitempty" db:"-"`
	AuthorPictureURL string                  `json:"post_author_profile_pic_url,omitempty" db:"-"`
	ImageURL         string                  `json:"post_image_url,omitempty" db:"-"`
	PostedAtLabel    string                  `json:"posted_at_label,omitempty" db:"-"`
	Fingerprint      fingerprint.Fingerprint `json:"content_hash" db:"content_hash"`
	HarvestedAt      time.Time               `json:"scraped_at" db:"scraped_at"`
}

// HasText reports whether a body text was extracted
func (p *Post) HasText() bool {
	return p.Text != "" && p.Text != NoText
}

// Group identifies a feed. Key is a stable partition key derived from the URL.
type Group struct {
	ID   int64  `json:"id,omitempty" db:"group_id"`
	Name string `json:"name,omitempty" db:"group_name"`
	URL  string `json:"url" db:"group_url"`
	Key  string `json:"key" db:"group_key"`
}

var groupIDPattern = regexp.MustCompile(`/groups/(\d+)`)

// NewGroup builds a group descriptor for url. Numeric group ids give
// "Group_<id>"; vanity urls fall back to the first 10 hex chars of the url's MD5.
func NewGroup(name, url string) Group {
	return Group{Name: name, URL: url, Key: GroupKey(url)}
}

// GroupKey derives the partition key for a group url
func GroupKey(url string) string {
	if m := groupIDPattern.FindStringSubmatch(url); m != nil {
		return "Group_" + m[1]
	}
	sum := md5.Sum([]byte(url))
	return "Group_" + hex.EncodeToString(sum[:])[:10]
}

// Field names a selectively extracted post attribute
type Field string

const (
	FieldText          Field = "content_text"
	FieldAuthorName    Field = "post_author_name"
	FieldAuthorPicture Field = "post_author_profile_pic_url"
	FieldImage         Field = "post_image_url"
	FieldPostedAt      Field = "posted_at"
)

// AllFields lists every extractable field
var AllFields = []Field{FieldText, FieldAuthorName, FieldAuthorPicture, FieldImage, FieldPostedAt}

// FieldSet is the set of requested fields. An empty set means all fields.
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from names; unknown names are ignored
func NewFieldSet(names ...string) FieldSet {
	set := FieldSet{}
	for _, n := range names {
		f := Field(strings.TrimSpace(n))
		for _, known := range AllFields {
			if f == known {
				set[f] = struct{}{}
			}
		}
	}
	return set
}

// Has reports whether f was requested
func (s FieldSet) Has(f Field) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[f]
	return ok
}

// Identity is the tentative identifier/permalink pair of a candidate
type Identity struct {
	ID        string
	URL       string
	Synthetic bool
	// Content keys a post without a permalink by its rendered text, so
	// the same post is recognised again after the feed re-renders it
	Content string
}

// Candidate is a captured post snapshot waiting for extraction
type Candidate struct {
	Seq      int
	Identity Identity
	HTML     string
}
