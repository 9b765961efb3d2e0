package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pagecrawl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	endpoint    TEXT,
	pages       INTEGER NOT NULL DEFAULT 0,
	posts       INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS pages (
	id                TEXT PRIMARY KEY,
	name              TEXT,
	url               TEXT NOT NULL UNIQUE,
	profile_image_url TEXT,
	followers_raw     TEXT,
	followers         INTEGER NOT NULL DEFAULT 0,
	category          TEXT,
	extracted_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY,
	page_id      TEXT REFERENCES pages(id),
	url          TEXT,
	timestamp    TEXT,
	text_content TEXT,
	likes        INTEGER NOT NULL DEFAULT 0,
	comments     INTEGER NOT NULL DEFAULT 0,
	shares       INTEGER NOT NULL DEFAULT 0,
	raw_data     TEXT NOT NULL,
	extracted_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS media (
	id         TEXT PRIMARY KEY,
	post_id    TEXT NOT NULL REFERENCES posts(id),
	media_type TEXT NOT NULL,
	media_url  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_crawl_runs_url ON crawl_runs(url);
CREATE INDEX IF NOT EXISTS idx_posts_page_id ON posts(page_id);
CREATE INDEX IF NOT EXISTS idx_media_post_id ON media(post_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, url string) (*model.CrawlRun, error) {
	run := &model.CrawlRun{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, url, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.URL, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.CrawlRun) error {
	run.FinishedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs SET status = ?, endpoint = ?, pages = ?, posts = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.Endpoint, run.Pages, run.Posts, run.Error, run.FinishedAt, run.ID,
	)
	return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.CrawlRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, status, COALESCE(endpoint, ''), pages, posts, COALESCE(error, ''), started_at, COALESCE(finished_at, started_at)
		 FROM crawl_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.CrawlRun
	for rows.Next() {
		var r model.CrawlRun
		var status string
		if err := rows.Scan(&r.ID, &r.URL, &status, &r.Endpoint, &r.Pages, &r.Posts, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) SavePage(ctx context.Context, page *model.Page) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (id, name, url, profile_image_url, followers_raw, followers, category, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
			name = excluded.name,
			profile_image_url = excluded.profile_image_url,
			followers_raw = excluded.followers_raw,
			followers = excluded.followers,
			category = excluded.category,
			extracted_at = excluded.extracted_at`,
		page.ID, page.Name, page.URL, page.ProfileImageURL, page.FollowersRaw,
		page.Followers, page.Category, page.ExtractedAt,
	)
	return eris.Wrapf(err, "sqlite: save page %s", page.URL)
}

func (s *SQLiteStore) SavePosts(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range posts {
		raw, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal post %s", p.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO posts (id, page_id, url, timestamp, text_content, likes, comments, shares, raw_data, extracted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.PageID, p.URL, p.Timestamp, p.Text,
			p.Reactions.Likes, p.Reactions.Comments, p.Reactions.Shares,
			string(raw), p.ExtractedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert post %s", p.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE post_id = ?`, p.ID); err != nil {
			return eris.Wrapf(err, "sqlite: clear media for %s", p.ID)
		}
		for mediaType, urls := range map[model.MediaType][]string{
			model.MediaImage: p.ImageURLs,
			model.MediaVideo: p.VideoURLs,
		} {
			for _, u := range urls {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO media (id, post_id, media_type, media_url) VALUES (?, ?, ?, ?)`,
					uuid.New().String(), p.ID, string(mediaType), u,
				)
				if err != nil {
					return eris.Wrapf(err, "sqlite: insert media for %s", p.ID)
				}
			}
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit posts")
}

func (s *SQLiteStore) GetPage(ctx context.Context, pageURL string) (*model.Page, error) {
	var p model.Page
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(name, ''), url, COALESCE(profile_image_url, ''), COALESCE(followers_raw, ''), followers, COALESCE(category, ''), extracted_at
		 FROM pages WHERE url = ?`, pageURL,
	).Scan(&p.ID, &p.Name, &p.URL, &p.ProfileImageURL, &p.FollowersRaw, &p.Followers, &p.Category, &p.ExtractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get page %s", pageURL)
	}
	return &p, nil
}

func (s *SQLiteStore) ListPages(ctx context.Context) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(name, ''), url, COALESCE(profile_image_url, ''), COALESCE(followers_raw, ''), followers, COALESCE(category, ''), extracted_at
		 FROM pages ORDER BY extracted_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pages")
	}
	defer rows.Close() //nolint:errcheck

	var pages []model.Page
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.Name, &p.URL, &p.ProfileImageURL, &p.FollowersRaw, &p.Followers, &p.Category, &p.ExtractedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page")
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *SQLiteStore) ListPosts(ctx context.Context, pageID string) ([]model.Post, error) {
	query := `SELECT raw_data FROM posts ORDER BY extracted_at DESC`
	args := []any{}
	if pageID != "" {
		query = `SELECT raw_data FROM posts WHERE page_id = ? ORDER BY extracted_at DESC`
		args = append(args, pageID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list posts")
	}
	defer rows.Close() //nolint:errcheck

	var posts []model.Post
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan post")
		}
		var p model.Post
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal post")
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
