// Package records defines the structured collaborator data the context
// assembler draws on: disaster alerts, user reports, community posts and
// news articles. The types mirror what the surrounding tracking backend
// stores; this package only reads them.
package records

import (
	"time"
)

// DisasterEvent is an active alert published for an area.
type DisasterEvent struct {
	ID           string    `json:"id" yaml:"id"`
	DisasterType string    `json:"disaster_type" yaml:"disaster_type"`
	Description  string    `json:"description" yaml:"description"`
	LocationName string    `json:"location_name" yaml:"location_name"`
	Location     Point     `json:"location" yaml:"location"`
	ReportedAt   time.Time `json:"reported_at" yaml:"reported_at"`
	Source       string    `json:"source,omitempty" yaml:"source,omitempty"`
}

// Report is a hazard observation submitted by a user.
type Report struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Description  string    `json:"description" yaml:"description"`
	DisasterType string    `json:"disaster_type" yaml:"disaster_type"`
	PostedBy     string    `json:"posted_by" yaml:"posted_by"`
	Location     Point     `json:"location" yaml:"location"`
	ReportedAt   time.Time `json:"reported_at" yaml:"reported_at"`
}

// CommunityPost is a free-form post on the community board.
type CommunityPost struct {
	ID       string    `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Content  string    `json:"content" yaml:"content"`
	PostedBy string    `json:"posted_by" yaml:"posted_by"`
	Location Point     `json:"location" yaml:"location"`
	PostedAt time.Time `json:"posted_at" yaml:"posted_at"`
}

// NewsArticle is a news item fetched from an external feed. PublishedAt is
// kept as the feed supplied it; use PublishedTime to interpret it.
type NewsArticle struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	SourceName  string `json:"source_name" yaml:"source_name"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	PublishedAt string `json:"published_at" yaml:"published_at"`
	Content     string `json:"content,omitempty" yaml:"content,omitempty"`
}

// publishedLayouts are the timestamp formats seen in news feeds, tried in
// order.
var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// PublishedTime parses PublishedAt. The boolean is false when the value is
// empty or in no recognised layout.
func (n NewsArticle) PublishedTime() (time.Time, bool) {
	if n.PublishedAt == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, n.PublishedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
