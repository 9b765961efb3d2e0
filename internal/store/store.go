// Package store persists crawl runs and extracted pages/posts behind a
// driver-switched interface (SQLite for local use, Postgres for shared
// deployments) and writes file exports in JSON, CSV and XLSX.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pagecrawl/internal/config"
	"github.com/sells-group/pagecrawl/internal/model"
)

// Store defines the persistence interface for crawl output.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, url string) (*model.CrawlRun, error)
	CompleteRun(ctx context.Context, run *model.CrawlRun) error
	ListRuns(ctx context.Context, limit int) ([]model.CrawlRun, error)

	// Extracted data
	SavePage(ctx context.Context, page *model.Page) error
	SavePosts(ctx context.Context, posts []model.Post) error
	GetPage(ctx context.Context, pageURL string) (*model.Page, error)
	ListPages(ctx context.Context) ([]model.Page, error)
	ListPosts(ctx context.Context, pageID string) ([]model.Post, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open selects a backend from config.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
