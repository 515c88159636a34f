package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/mifdirfan/climatetrack/internal/records"
)

// RecordStore serves the collaborator queries of the context assembler from
// a SQLite database seeded with Import.
type RecordStore struct {
	db *sql.DB
}

const recordsDDL = `
CREATE TABLE IF NOT EXISTS alerts (
    id             TEXT PRIMARY KEY,
    disaster_type  TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    location_name  TEXT NOT NULL DEFAULT '',
    lat            REAL NOT NULL,
    lon            REAL NOT NULL,
    reported_at    INTEGER NOT NULL DEFAULT 0,  -- Unix timestamp (seconds)
    source         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_alerts_lat_lon ON alerts (lat, lon);

CREATE TABLE IF NOT EXISTS reports (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    disaster_type  TEXT NOT NULL DEFAULT '',
    posted_by      TEXT NOT NULL DEFAULT '',
    lat            REAL NOT NULL,
    lon            REAL NOT NULL,
    reported_at    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_reports_lat_lon ON reports (lat, lon);

CREATE TABLE IF NOT EXISTS posts (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL DEFAULT '',
    posted_by  TEXT NOT NULL DEFAULT '',
    lat        REAL NOT NULL,
    lon        REAL NOT NULL,
    posted_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_posts_lat_lon ON posts (lat, lon);

CREATE TABLE IF NOT EXISTS news (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    source_name   TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    url           TEXT NOT NULL DEFAULT '',
    published_at  TEXT NOT NULL DEFAULT '',
    content       TEXT NOT NULL DEFAULT ''
);
`

// OpenRecords opens (or creates) a RecordStore at the given path.
func OpenRecords(path string) (*RecordStore, error) {
	db, err := openSQLite(path, recordsDDL)
	if err != nil {
		return nil, err
	}
	return &RecordStore{db: db}, nil
}

// near holds a row and its distance from the query point.
type near[T any] struct {
	rec  T
	dist float64
}

// boxArgs returns the bounding-box query arguments for center and radius.
// A box that crosses the antimeridian is widened to all longitudes.
func boxArgs(center records.Point, radiusKM float64) []any {
	minLat, maxLat, minLon, maxLon := records.BoundingBox(center, radiusKM)
	if minLon < -180 || maxLon > 180 {
		minLon, maxLon = -180, 180
	}
	return []any{minLat, maxLat, minLon, maxLon}
}

// closest filters candidates by exact distance, orders them nearest first
// and keeps at most limit.
func closest[T any](candidates []near[T], radiusKM float64, limit int) []T {
	kept := slices.DeleteFunc(candidates, func(c near[T]) bool { return c.dist > radiusKM })
	slices.SortStableFunc(kept, func(a, b near[T]) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	out := make([]T, len(kept))
	for i, c := range kept {
		out[i] = c.rec
	}
	return out
}

// AlertsNear returns up to limit alerts within radiusKM of center, nearest
// first. A limit of zero or less returns every match.
func (s *RecordStore) AlertsNear(ctx context.Context, center records.Point, radiusKM float64, limit int) ([]records.DisasterEvent, error) {
	const q = `
SELECT id, disaster_type, description, location_name, lat, lon, reported_at, source
FROM   alerts
WHERE  lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`

	rows, err := s.db.QueryContext(ctx, q, boxArgs(center, radiusKM)...)
	if err != nil {
		return nil, fmt.Errorf("store: alerts near: %w", err)
	}
	defer rows.Close()

	var cands []near[records.DisasterEvent]
	for rows.Next() {
		var a records.DisasterEvent
		var ts int64
		if err := rows.Scan(&a.ID, &a.DisasterType, &a.Description, &a.LocationName, &a.Location.Lat, &a.Location.Lon, &ts, &a.Source); err != nil {
			return nil, fmt.Errorf("store: alerts near scan: %w", err)
		}
		a.ReportedAt = time.Unix(ts, 0).UTC()
		cands = append(cands, near[records.DisasterEvent]{rec: a, dist: records.HaversineKM(center, a.Location)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: alerts near rows: %w", err)
	}
	return closest(cands, radiusKM, limit), nil
}

// ReportsNear returns up to limit user reports within radiusKM of center,
// nearest first.
func (s *RecordStore) ReportsNear(ctx context.Context, center records.Point, radiusKM float64, limit int) ([]records.Report, error) {
	const q = `
SELECT id, title, description, disaster_type, posted_by, lat, lon, reported_at
FROM   reports
WHERE  lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`

	rows, err := s.db.QueryContext(ctx, q, boxArgs(center, radiusKM)...)
	if err != nil {
		return nil, fmt.Errorf("store: reports near: %w", err)
	}
	defer rows.Close()

	var cands []near[records.Report]
	for rows.Next() {
		var r records.Report
		var ts int64
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.DisasterType, &r.PostedBy, &r.Location.Lat, &r.Location.Lon, &ts); err != nil {
			return nil, fmt.Errorf("store: reports near scan: %w", err)
		}
		r.ReportedAt = time.Unix(ts, 0).UTC()
		cands = append(cands, near[records.Report]{rec: r, dist: records.HaversineKM(center, r.Location)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: reports near rows: %w", err)
	}
	return closest(cands, radiusKM, limit), nil
}

// PostsNear returns up to limit community posts within radiusKM of center,
// nearest first.
func (s *RecordStore) PostsNear(ctx context.Context, center records.Point, radiusKM float64, limit int) ([]records.CommunityPost, error) {
	const q = `
SELECT id, title, content, posted_by, lat, lon, posted_at
FROM   posts
WHERE  lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`

	rows, err := s.db.QueryContext(ctx, q, boxArgs(center, radiusKM)...)
	if err != nil {
		return nil, fmt.Errorf("store: posts near: %w", err)
	}
	defer rows.Close()

	var cands []near[records.CommunityPost]
	for rows.Next() {
		var p records.CommunityPost
		var ts int64
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.PostedBy, &p.Location.Lat, &p.Location.Lon, &ts); err != nil {
			return nil, fmt.Errorf("store: posts near scan: %w", err)
		}
		p.PostedAt = time.Unix(ts, 0).UTC()
		cands = append(cands, near[records.CommunityPost]{rec: p, dist: records.HaversineKM(center, p.Location)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: posts near rows: %w", err)
	}
	return closest(cands, radiusKM, limit), nil
}

// AllNews returns every stored news article in insertion order. Ordering
// by publish time is left to the caller because feeds use mixed formats.
func (s *RecordStore) AllNews(ctx context.Context) ([]records.NewsArticle, error) {
	const q = `SELECT id, title, source_name, author, url, published_at, content FROM news ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: all news: %w", err)
	}
	defer rows.Close()

	var out []records.NewsArticle
	for rows.Next() {
		var n records.NewsArticle
		if err := rows.Scan(&n.ID, &n.Title, &n.SourceName, &n.Author, &n.URL, &n.PublishedAt, &n.Content); err != nil {
			return nil, fmt.Errorf("store: all news scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: all news rows: %w", err)
	}
	return out, nil
}

// Import upserts every record of ds in one transaction. Existing rows with
// the same ID are replaced.
func (s *RecordStore) Import(ctx context.Context, ds records.Dataset) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: import begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, a := range ds.Alerts {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO alerts (id, disaster_type, description, location_name, lat, lon, reported_at, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.DisasterType, a.Description, a.LocationName, a.Location.Lat, a.Location.Lon, a.ReportedAt.Unix(), a.Source,
		); err != nil {
			return fmt.Errorf("store: import alert %s: %w", a.ID, err)
		}
	}
	for _, r := range ds.Reports {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO reports (id, title, description, disaster_type, posted_by, lat, lon, reported_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Title, r.Description, r.DisasterType, r.PostedBy, r.Location.Lat, r.Location.Lon, r.ReportedAt.Unix(),
		); err != nil {
			return fmt.Errorf("store: import report %s: %w", r.ID, err)
		}
	}
	for _, p := range ds.Posts {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO posts (id, title, content, posted_by, lat, lon, posted_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Title, p.Content, p.PostedBy, p.Location.Lat, p.Location.Lon, p.PostedAt.Unix(),
		); err != nil {
			return fmt.Errorf("store: import post %s: %w", p.ID, err)
		}
	}
	for _, n := range ds.News {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO news (id, title, source_name, author, url, published_at, content) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Title, n.SourceName, n.Author, n.URL, n.PublishedAt, n.Content,
		); err != nil {
			return fmt.Errorf("store: import news %s: %w", n.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: import commit: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *RecordStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: records ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *RecordStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
