package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mifdirfan/climatetrack/internal/budget"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/records"
)

// Defaults applied when the corresponding AssemblerConfig field is zero.
const (
	DefaultRadiusKM = 20.0
	DefaultTopK     = 3
	DefaultTopN     = 5
)

// Section labels, rendered as "--- START <label> ---" ... "--- END <label> ---".
const (
	SectionNearbyAlerts  = "NEARBY ALERTS"
	SectionNearbyReports = "NEARBY REPORTS"
	SectionNearbyPosts   = "NEARBY COMMUNITY POSTS"
	SectionDocuments     = "RELEVANT DOCUMENTS"
	SectionNews          = "LATEST NEWS"
)

// NoContext is the document section body when retrieval finds nothing.
const NoContext = "No relevant context found."

const truncatedMarker = "\n[context truncated]"

// Records is the read-only view of the structured collaborators.
type Records interface {
	AlertsNear(ctx context.Context, center records.Point, radiusKM float64, limit int) ([]records.DisasterEvent, error)
	ReportsNear(ctx context.Context, center records.Point, radiusKM float64, limit int) ([]records.Report, error)
	PostsNear(ctx context.Context, center records.Point, radiusKM float64, limit int) ([]records.CommunityPost, error)
	AllNews(ctx context.Context) ([]records.NewsArticle, error)
}

// Retriever returns the texts of the chunks most similar to query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	// Records serves the proximity and news sections. Nil renders those
	// sections with their empty line.
	Records Records
	// Retriever serves the document section. Nil renders NoContext.
	Retriever Retriever
	// RadiusKM is the proximity search radius.
	RadiusKM float64
	// TopK is the number of document chunks retrieved.
	TopK int
	// TopN caps each structured section.
	TopN int
	// MaxTokens bounds the assembled text. Zero means budget.DefaultMaxContextTokens.
	MaxTokens int
	Logger    *slog.Logger
}

// QueryContext is the per-request result of Assemble.
type QueryContext struct {
	Intent   Intent
	Location *records.Point
	// Sections lists the labels in the order they were rendered.
	Sections []string
	// Text is the grounding context used verbatim in the system prompt.
	Text string
}

// Assembler builds grounding context. It is stateless apart from its
// collaborators and safe for concurrent use.
type Assembler struct {
	records   Records
	retriever Retriever
	radiusKM  float64
	topK      int
	topN      int
	maxTokens int
	log       *slog.Logger
}

// NewAssembler applies defaults to cfg and returns an Assembler.
func NewAssembler(cfg *AssemblerConfig) *Assembler {
	if cfg == nil {
		cfg = &AssemblerConfig{}
	}
	a := &Assembler{
		records:   cfg.Records,
		retriever: cfg.Retriever,
		radiusKM:  cfg.RadiusKM,
		topK:      cfg.TopK,
		topN:      cfg.TopN,
		maxTokens: cfg.MaxTokens,
		log:       logging.OrDefault(cfg.Logger),
	}
	if a.radiusKM <= 0 {
		a.radiusKM = DefaultRadiusKM
	}
	if a.topK <= 0 {
		a.topK = DefaultTopK
	}
	if a.topN <= 0 {
		a.topN = DefaultTopN
	}
	if a.maxTokens <= 0 {
		a.maxTokens = budget.DefaultMaxContextTokens
	}
	return a
}

// Assemble classifies message and renders the matching evidence. A nil or
// invalid location counts as unknown. Collaborator and embedding failures
// are logged and rendered as empty sections; Assemble never fails.
func (a *Assembler) Assemble(ctx context.Context, message string, location *records.Point) QueryContext {
	if location != nil && !location.Valid() {
		location = nil
	}
	qc := QueryContext{
		Intent:   Classify(message, location != nil),
		Location: location,
	}

	var b strings.Builder
	if location != nil {
		fmt.Fprintf(&b, "User location: %s\n", location)
	}

	add := func(label string, lines []string, empty string) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		writeSection(&b, label, lines, empty)
		qc.Sections = append(qc.Sections, label)
	}

	switch qc.Intent {
	case IntentProximity:
		alerts, reports, posts := a.nearby(ctx, *location)
		add(SectionNearbyAlerts, alerts, "No nearby alerts reported.")
		add(SectionNearbyReports, reports, "No nearby reports found.")
		add(SectionNearbyPosts, posts, "No nearby community posts found.")
	case IntentHowTo:
		add(SectionDocuments, a.documents(ctx, message), NoContext)
	case IntentNews:
		add(SectionNews, a.news(ctx), "No recent news found.")
	}

	qc.Text = budget.Truncate(b.String(), a.maxTokens, truncatedMarker)
	return qc
}

// writeSection renders one labelled block. A section with no lines gets the
// empty line so the model can tell "nothing found" from "not asked".
func writeSection(b *strings.Builder, label string, lines []string, empty string) {
	fmt.Fprintf(b, "--- START %s ---\n", label)
	if len(lines) == 0 {
		b.WriteString(empty)
		b.WriteString("\n")
	}
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "--- END %s ---\n", label)
}

// nearby runs the three proximity lookups one after another; the records
// database serialises access on a single connection anyway.
func (a *Assembler) nearby(ctx context.Context, at records.Point) (alerts, reports, posts []string) {
	if a.records == nil {
		return nil, nil, nil
	}

	if found, err := a.records.AlertsNear(ctx, at, a.radiusKM, a.topN); err != nil {
		a.warn(ctx, "alerts", err)
	} else {
		for _, e := range found {
			alerts = append(alerts, FormatAlert(e))
		}
	}

	if found, err := a.records.ReportsNear(ctx, at, a.radiusKM, a.topN); err != nil {
		a.warn(ctx, "reports", err)
	} else {
		for _, r := range found {
			reports = append(reports, FormatReport(r))
		}
	}

	if found, err := a.records.PostsNear(ctx, at, a.radiusKM, a.topN); err != nil {
		a.warn(ctx, "posts", err)
	} else {
		for _, p := range found {
			posts = append(posts, FormatPost(p))
		}
	}
	return alerts, reports, posts
}

// documents returns the top-K chunks joined into a single entry.
func (a *Assembler) documents(ctx context.Context, message string) []string {
	if a.retriever == nil {
		return nil
	}
	chunks, err := a.retriever.Retrieve(ctx, message, a.topK)
	if err != nil {
		a.warn(ctx, "documents", err)
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}
	return []string{strings.Join(chunks, "\n\n---\n\n")}
}

func (a *Assembler) news(ctx context.Context) []string {
	if a.records == nil {
		return nil
	}
	articles, err := a.records.AllNews(ctx)
	if err != nil {
		a.warn(ctx, "news", err)
		return nil
	}
	latest := LatestNews(articles, a.topN)
	lines := make([]string, len(latest))
	for i, n := range latest {
		lines[i] = FormatNews(n)
	}
	return lines
}

func (a *Assembler) warn(ctx context.Context, section string, err error) {
	a.log.WarnContext(ctx, "grounding: section lookup failed",
		slog.String("section", section),
		slog.Any("error", err),
	)
}

// LatestNews orders articles by publish time, newest first, and returns at
// most n. Articles whose timestamp cannot be parsed sort after all others
// in their original order. The input is not modified.
func LatestNews(articles []records.NewsArticle, n int) []records.NewsArticle {
	type dated struct {
		article records.NewsArticle
		at      time.Time
		ok      bool
	}
	ds := make([]dated, len(articles))
	for i, art := range articles {
		at, ok := art.PublishedTime()
		ds[i] = dated{article: art, at: at, ok: ok}
	}
	slices.SortStableFunc(ds, func(x, y dated) int {
		switch {
		case x.ok && !y.ok:
			return -1
		case !x.ok && y.ok:
			return 1
		case !x.ok && !y.ok:
			return 0
		}
		return y.at.Compare(x.at)
	})

	if n >= 0 && len(ds) > n {
		ds = ds[:n]
	}
	out := make([]records.NewsArticle, len(ds))
	for i, d := range ds {
		out[i] = d.article
	}
	return out
}

// FormatAlert renders an alert line.
func FormatAlert(e records.DisasterEvent) string {
	return fmt.Sprintf("Alert: %s. Location: %s. Description: %s", e.DisasterType, e.LocationName, e.Description)
}

// FormatReport renders a user report line.
func FormatReport(r records.Report) string {
	return fmt.Sprintf("Report: %s. Type: %s. Description: %s. Reported by %s", r.Title, r.DisasterType, r.Description, r.PostedBy)
}

// FormatPost renders a community post line.
func FormatPost(p records.CommunityPost) string {
	return fmt.Sprintf("Post: %s. %s (by %s)", p.Title, p.Content, p.PostedBy)
}

// FormatNews renders a news line.
func FormatNews(n records.NewsArticle) string {
	return fmt.Sprintf("News: %s. Source: %s", n.Title, n.SourceName)
}
