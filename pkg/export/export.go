// Package export writes harvested posts to JSON files for downstream tools.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fbharvest/pkg/harvester"
	"fbharvest/pkg/models"
)

// Document is the exported form of one harvest
type Document struct {
	Group       models.Group    `json:"group"`
	HarvestedAt time.Time       `json:"harvested_at"`
	Stop        string          `json:"stop_reason"`
	Stats       harvester.Stats `json:"stats"`
	Posts       []*models.Post  `json:"posts"`
}

// FromResult builds a document; posts stay oldest first
func FromResult(r *harvester.Result, at time.Time) *Document {
	posts := r.Posts
	if posts == nil {
		posts = []*models.Post{}
	}
	return &Document{
		Group:       r.Group,
		HarvestedAt: at.UTC(),
		Stop:        string(r.Stop),
		Stats:       r.Stats,
		Posts:       posts,
	}
}

// Encode writes the document as indented JSON
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(d)
}

// Save writes the document to path atomically. A path of "-" writes to
// stdout.
func (d *Document) Save(path string) error {
	if path == "-" {
		return d.Encode(os.Stdout)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary export file: %w", err)
	}

	if err := d.Encode(file); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close export file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename export file: %w", err)
	}
	return nil
}

// Load reads a document written by Save
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return &doc, nil
}

// PathFor expands the export template for a group. The template may contain
// {group} and {date} placeholders.
func PathFor(template string, g models.Group, at time.Time) string {
	return strings.NewReplacer(
		"{group}", g.Key,
		"{date}", at.UTC().Format("20060102-150405"),
	).Replace(template)
}
