package store

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pagecrawl/internal/model"
)

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	e, err := NewExporter(t.TempDir())
	require.NoError(t, err)
	return e
}

func TestExporter_WriteJSON(t *testing.T) {
	e := newTestExporter(t)

	path, err := e.WriteJSON(*testPage(), testPosts())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "acme_widgets_"))
	assert.True(t, strings.HasSuffix(path, ".json"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc pageExport
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Acme Widgets", doc.Page.Name)
	require.Len(t, doc.Posts, 2)
	assert.Equal(t, 1200, doc.Posts[0].Reactions.Likes)
}

func TestExporter_WriteCSV(t *testing.T) {
	e := newTestExporter(t)

	pagesPath, postsPath, err := e.WriteCSV([]model.Page{*testPage()}, testPosts())
	require.NoError(t, err)

	f, err := os.Open(pagesPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, pageCSVHeader, records[0])
	assert.Equal(t, "Acme Widgets", records[1][1])
	assert.Equal(t, "42500", records[1][3])

	pf, err := os.Open(postsPath)
	require.NoError(t, err)
	defer pf.Close() //nolint:errcheck
	postRecords, err := csv.NewReader(pf).ReadAll()
	require.NoError(t, err)
	require.Len(t, postRecords, 3)
	assert.Equal(t, "1200", postRecords[1][5])
}

func TestExporter_WriteXLSX(t *testing.T) {
	e := newTestExporter(t)

	path, err := e.WriteXLSX([]model.Page{*testPage()}, testPosts())
	require.NoError(t, err)

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "Pages", wb.Sheets[0].Name)
	assert.Equal(t, "Posts", wb.Sheets[1].Name)

	// Header row plus one page row.
	require.Len(t, wb.Sheets[0].Rows, 2)
	assert.Equal(t, "Acme Widgets", wb.Sheets[0].Rows[1].Cells[1].Value)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Acme Widgets":            "acme_widgets",
		"":                        "page",
		"a/b\\c:d":                "a_b_c_d",
		strings.Repeat("x", 80):   strings.Repeat("x", 50),
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
