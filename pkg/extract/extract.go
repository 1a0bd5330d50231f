// Package extract turns captured post markup into post records. It never
// touches the live browser session and is safe to run from many goroutines.
package extract

import (
	"strings"
	"time"

	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/fingerprint"
	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoSubstance is returned for markup that has neither an identity nor
// any extracted content
var ErrNoSubstance = errs.New(errs.ErrorTypeParsing, "extract", "post has no identity or content")

// Extractor parses candidates for the requested fields
type Extractor struct {
	fields models.FieldSet
	logger logger.Logger
	now    func() time.Time
}

// New creates an extractor. An empty field set extracts every field.
func New(fields models.FieldSet, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		fields: fields,
		logger: log.WithField("component", "extract"),
		now:    time.Now,
	}
}

// Extract parses one captured candidate. The body text is fingerprinted
// before the record is returned; missing text fingerprints as "".
func (e *Extractor) Extract(c models.Candidate) (*models.Post, error) {
	if strings.TrimSpace(c.HTML) == "" {
		return nil, errs.New(errs.ErrorTypeParsing, "extract", "empty markup")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(c.HTML))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "extract", err)
	}
	root := doc.Selection

	post := &models.Post{
		FacebookID:  c.Identity.ID,
		URL:         c.Identity.URL,
		Text:        models.NoText,
		HarvestedAt: e.now().UTC(),
	}

	if e.fields.Has(models.FieldAuthorPicture) {
		post.AuthorPictureURL = firstOf(root, authorPictureStrategies)
	}
	if e.fields.Has(models.FieldAuthorName) {
		post.AuthorName = firstOf(root, authorNameStrategies)
	}
	if e.fields.Has(models.FieldText) {
		if text := firstOf(root, textStrategies); text != "" {
			post.Text = text
		}
	}

	if post.HasText() {
		post.Fingerprint = fingerprint.Of(post.Text)
	} else {
		post.Fingerprint = fingerprint.Empty
	}

	if e.fields.Has(models.FieldImage) {
		post.ImageURL = firstOf(root, imageStrategies)
	}
	if e.fields.Has(models.FieldPostedAt) {
		post.PostedAtLabel = firstOf(root, postedAtStrategies)
	}

	hasIdentity := post.URL != "" || post.FacebookID != ""
	hasContent := post.HasText() || post.PostedAtLabel != "" || post.AuthorName != ""
	if !hasIdentity || !hasContent {
		e.logger.DebugWithFields("Skipping post without essential data", map[string]interface{}{
			"post_id": post.FacebookID,
			"url":     post.URL,
		})
		return nil, ErrNoSubstance
	}

	return post, nil
}
