package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pagecrawl/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO crawl_runs`).
		WithArgs(pgxmock.AnyArg(), "https://example.com/acme", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "https://example.com/acme")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := &model.CrawlRun{
		ID:        "run-1",
		URL:       "https://example.com/acme",
		Status:    model.RunStatusSucceeded,
		Endpoint:  "proxy1.example.com:8080",
		Pages:     1,
		Posts:     2,
		StartedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`UPDATE crawl_runs SET`).
		WithArgs("succeeded", "proxy1.example.com:8080", 1, 2, "", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteRun(context.Background(), run))
	assert.False(t, run.FinishedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "url", "status", "endpoint", "pages", "posts", "error", "started_at", "finished_at",
	}).AddRow("run-1", "https://example.com/acme", "succeeded", "proxy1:8080", 1, 2, "", started, started)

	mock.ExpectQuery(`SELECT id, url, status, .+ FROM crawl_runs`).
		WithArgs(10).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, "proxy1:8080", runs[0].Endpoint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPage_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM pages WHERE url = \$1`).
		WithArgs("https://example.com/nobody").
		WillReturnError(pgx.ErrNoRows)

	page, err := s.GetPage(context.Background(), "https://example.com/nobody")
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePage_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	page := testPage()
	mock.ExpectExec(`INSERT INTO pages .+ ON CONFLICT \(url\) DO UPDATE`).
		WithArgs(page.ID, page.Name, page.URL, page.ProfileImageURL, page.FollowersRaw,
			page.Followers, page.Category, page.ExtractedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SavePage(context.Background(), page))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePosts_CopiesMedia(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	posts := testPosts()

	for range posts {
		mock.ExpectExec(`INSERT INTO posts`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`DELETE FROM media WHERE post_id = \$1`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
	}
	// post-1 carries one image and one video; post-2 has no media.
	mock.ExpectCopyFrom(pgx.Identifier{"media"}, []string{"id", "post_id", "media_type", "media_url"}).
		WillReturnResult(2)

	require.NoError(t, s.SavePosts(context.Background(), posts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePosts_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	require.NoError(t, s.SavePosts(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
