package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/pagecrawl/internal/model"
)

// Exporter writes crawl output to files under a target directory.
// Filenames carry a timestamp so successive exports never clobber
// each other.
type Exporter struct {
	dir string
}

// NewExporter ensures the output directory exists.
func NewExporter(dir string) (*Exporter, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: mkdir %s", dir)
	}
	return &Exporter{dir: dir}, nil
}

func (e *Exporter) stamp(name, ext string) string {
	ts := time.Now().Format("20060102_150405")
	return filepath.Join(e.dir, fmt.Sprintf("%s_%s.%s", name, ts, ext))
}

// pageExport is the JSON document shape: page info plus its posts.
type pageExport struct {
	Page  model.Page   `json:"page"`
	Posts []model.Post `json:"posts"`
}

// WriteJSON writes a page and its posts as one indented JSON document.
func (e *Exporter) WriteJSON(page model.Page, posts []model.Post) (string, error) {
	path := e.stamp(sanitizeFilename(page.Name), "json")
	raw, err := json.MarshalIndent(pageExport{Page: page, Posts: posts}, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "export: marshal json")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", eris.Wrapf(err, "export: write %s", path)
	}
	zap.L().Info("wrote json export", zap.String("path", path), zap.Int("posts", len(posts)))
	return path, nil
}

var pageCSVHeader = []string{"id", "name", "url", "followers", "category", "extracted_at"}

var postCSVHeader = []string{"id", "page_id", "url", "timestamp", "text", "likes", "comments", "shares", "images", "videos", "extracted_at"}

// WriteCSV writes pages and posts as two separate CSV files and returns
// their paths.
func (e *Exporter) WriteCSV(pages []model.Page, posts []model.Post) (string, string, error) {
	pagesPath := e.stamp("pages_export", "csv")
	if err := writeCSVFile(pagesPath, pageCSVHeader, pageRows(pages)); err != nil {
		return "", "", err
	}
	postsPath := e.stamp("posts_export", "csv")
	if err := writeCSVFile(postsPath, postCSVHeader, postRows(posts)); err != nil {
		return "", "", err
	}
	zap.L().Info("wrote csv export",
		zap.Int("pages", len(pages)),
		zap.Int("posts", len(posts)),
	)
	return pagesPath, postsPath, nil
}

// WriteXLSX writes pages and posts as two sheets of one workbook.
func (e *Exporter) WriteXLSX(pages []model.Page, posts []model.Post) (string, error) {
	path := e.stamp("crawl_export", "xlsx")
	wb := xlsx.NewFile()

	pagesSheet, err := wb.AddSheet("Pages")
	if err != nil {
		return "", eris.Wrap(err, "export: add pages sheet")
	}
	addXLSXRow(pagesSheet, pageCSVHeader)
	for _, row := range pageRows(pages) {
		addXLSXRow(pagesSheet, row)
	}

	postsSheet, err := wb.AddSheet("Posts")
	if err != nil {
		return "", eris.Wrap(err, "export: add posts sheet")
	}
	addXLSXRow(postsSheet, postCSVHeader)
	for _, row := range postRows(posts) {
		addXLSXRow(postsSheet, row)
	}

	if err := wb.Save(path); err != nil {
		return "", eris.Wrapf(err, "export: save %s", path)
	}
	zap.L().Info("wrote xlsx export", zap.String("path", path))
	return path, nil
}

func addXLSXRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "export: write header %s", path)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "export: flush %s", path)
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

func pageRows(pages []model.Page) [][]string {
	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, []string{
			p.ID, p.Name, p.URL,
			strconv.Itoa(p.Followers),
			p.Category,
			p.ExtractedAt.Format(time.RFC3339),
		})
	}
	return rows
}

func postRows(posts []model.Post) [][]string {
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, []string{
			p.ID, p.PageID, p.URL, p.Timestamp, p.Text,
			strconv.Itoa(p.Reactions.Likes),
			strconv.Itoa(p.Reactions.Comments),
			strconv.Itoa(p.Reactions.Shares),
			strings.Join(p.ImageURLs, " "),
			strings.Join(p.VideoURLs, " "),
			p.ExtractedAt.Format(time.RFC3339),
		})
	}
	return rows
}

// sanitizeFilename makes a page name safe to embed in a filename.
func sanitizeFilename(name string) string {
	if name == "" {
		return "page"
	}
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	out := replacer.Replace(name)
	if len(out) > 50 {
		out = out[:50]
	}
	return strings.ToLower(out)
}
