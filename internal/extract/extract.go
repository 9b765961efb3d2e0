// Package extract pulls structured page and post data out of fetched HTML
// using goquery selectors and regex heuristics. The heuristics are tuned
// to feed-style social pages (posts as div[role='article'], display
// counts like "1.2K likes") and degrade to empty fields rather than
// erroring when markup deviates.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pagecrawl/internal/model"
)

// Options bounds extraction per page.
type Options struct {
	MaxPosts    int
	MaxComments int
}

// Extractor turns a fetched document into a Page and its Posts.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = 10
	}
	if opts.MaxComments <= 0 {
		opts.MaxComments = 5
	}
	return &Extractor{opts: opts}
}

var followersRe = regexp.MustCompile(`(?i)([\d.,]+[KkMm]?)\s*(followers|likes)`)

// ExtractPage parses the document and returns page-level info plus up to
// MaxPosts posts.
func (x *Extractor) ExtractPage(doc *model.Document) (*model.Page, []model.Post, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Body))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "extract: parse %s", doc.URL)
	}

	page := &model.Page{
		ID:          uuid.New().String(),
		URL:         doc.URL,
		Name:        cleanText(root.Find("h1").First().Text()),
		ExtractedAt: time.Now().UTC(),
	}

	// Profile image: any img carrying "profile" in its src.
	root.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if ok && strings.Contains(strings.ToLower(src), "profile") {
			page.ProfileImageURL = src
			return false
		}
		return true
	})

	// Follower/like count: first display string matching the pattern.
	if m := followersRe.FindStringSubmatch(root.Text()); m != nil {
		page.FollowersRaw = cleanText(m[0])
		page.Followers = ParseCount(m[1])
	}

	// Category: a span inside a container that mentions "category".
	root.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if class, _ := s.Attr("class"); strings.Contains(strings.ToLower(class), "category") {
			if text := cleanText(s.Find("span").First().Text()); text != "" {
				page.Category = text
				return false
			}
		}
		return true
	})

	posts := x.extractPosts(root, page.ID, doc.URL)
	zap.L().Info("extracted page",
		zap.String("url", doc.URL),
		zap.String("name", page.Name),
		zap.Int("posts", len(posts)),
	)
	return page, posts, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
