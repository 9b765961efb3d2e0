package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pagecrawl/internal/db"
	"github.com/sells-group/pagecrawl/internal/model"
)

// PostgresStore implements Store using pgxpool. The pool is held behind
// the db.Pool interface so tests can substitute pgxmock.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	endpoint    TEXT,
	pages       INTEGER NOT NULL DEFAULT 0,
	posts       INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS pages (
	id                TEXT PRIMARY KEY,
	name              TEXT,
	url               TEXT NOT NULL UNIQUE,
	profile_image_url TEXT,
	followers_raw     TEXT,
	followers         INTEGER NOT NULL DEFAULT 0,
	category          TEXT,
	extracted_at      TIMESTAMPTZ NOT NULL
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
	raw_data     JSONB NOT NULL,
	extracted_at TIMESTAMPTZ NOT NULL
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, url string) (*model.CrawlRun, error) {
	run := &model.CrawlRun{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_runs (id, url, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.URL, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.CrawlRun) error {
	run.FinishedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`UPDATE crawl_runs SET status = $1, endpoint = $2, pages = $3, posts = $4, error = $5, finished_at = $6 WHERE id = $7`,
		string(run.Status), run.Endpoint, run.Pages, run.Posts, run.Error, run.FinishedAt, run.ID,
	)
	return eris.Wrapf(err, "postgres: complete run %s", run.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.CrawlRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, status, COALESCE(endpoint, ''), pages, posts, COALESCE(error, ''), started_at, COALESCE(finished_at, started_at)
		 FROM crawl_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.CrawlRun
	for rows.Next() {
		var r model.CrawlRun
		var status string
		if err := rows.Scan(&r.ID, &r.URL, &status, &r.Endpoint, &r.Pages, &r.Posts, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) SavePage(ctx context.Context, page *model.Page) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pages (id, name, url, profile_image_url, followers_raw, followers, category, extracted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (url) DO UPDATE SET
			name = EXCLUDED.name,
			profile_image_url = EXCLUDED.profile_image_url,
			followers_raw = EXCLUDED.followers_raw,
			followers = EXCLUDED.followers,
			category = EXCLUDED.category,
			extracted_at = EXCLUDED.extracted_at`,
		page.ID, page.Name, page.URL, page.ProfileImageURL, page.FollowersRaw,
		page.Followers, page.Category, page.ExtractedAt,
	)
	return eris.Wrapf(err, "postgres: save page %s", page.URL)
}

func (s *PostgresStore) SavePosts(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	var mediaRows [][]any
	for _, p := range posts {
		raw, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal post %s", p.ID)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO posts (id, page_id, url, timestamp, text_content, likes, comments, shares, raw_data, extracted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
				text_content = EXCLUDED.text_content,
				likes = EXCLUDED.likes,
				comments = EXCLUDED.comments,
				shares = EXCLUDED.shares,
				raw_data = EXCLUDED.raw_data,
				extracted_at = EXCLUDED.extracted_at`,
			p.ID, p.PageID, p.URL, p.Timestamp, p.Text,
			p.Reactions.Likes, p.Reactions.Comments, p.Reactions.Shares,
			string(raw), p.ExtractedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert post %s", p.ID)
		}
		if _, err := s.pool.Exec(ctx, `DELETE FROM media WHERE post_id = $1`, p.ID); err != nil {
			return eris.Wrapf(err, "postgres: clear media for %s", p.ID)
		}
		for _, u := range p.ImageURLs {
			mediaRows = append(mediaRows, []any{uuid.New().String(), p.ID, string(model.MediaImage), u})
		}
		for _, u := range p.VideoURLs {
			mediaRows = append(mediaRows, []any{uuid.New().String(), p.ID, string(model.MediaVideo), u})
		}
	}

	_, err := db.CopyFrom(ctx, s.pool, "media", []string{"id", "post_id", "media_type", "media_url"}, mediaRows)
	return err
}

func (s *PostgresStore) GetPage(ctx context.Context, pageURL string) (*model.Page, error) {
	var p model.Page
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(name, ''), url, COALESCE(profile_image_url, ''), COALESCE(followers_raw, ''), followers, COALESCE(category, ''), extracted_at
		 FROM pages WHERE url = $1`, pageURL,
	).Scan(&p.ID, &p.Name, &p.URL, &p.ProfileImageURL, &p.FollowersRaw, &p.Followers, &p.Category, &p.ExtractedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get page %s", pageURL)
	}
	return &p, nil
}

func (s *PostgresStore) ListPages(ctx context.Context) ([]model.Page, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(name, ''), url, COALESCE(profile_image_url, ''), COALESCE(followers_raw, ''), followers, COALESCE(category, ''), extracted_at
		 FROM pages ORDER BY extracted_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pages")
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.Name, &p.URL, &p.ProfileImageURL, &p.FollowersRaw, &p.Followers, &p.Category, &p.ExtractedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page")
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PostgresStore) ListPosts(ctx context.Context, pageID string) ([]model.Post, error) {
	query := `SELECT raw_data FROM posts ORDER BY extracted_at DESC`
	args := []any{}
	if pageID != "" {
		query = `SELECT raw_data FROM posts WHERE page_id = $1 ORDER BY extracted_at DESC`
		args = append(args, pageID)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list posts")
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan post")
		}
		var p model.Post
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal post")
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
