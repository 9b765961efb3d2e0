package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/sells-group/pagecrawl/internal/model"
)

var digitRe = regexp.MustCompile(`\d`)

// extractPosts walks div[role='article'] containers, skipping nested ones
// that are themselves comments.
func (x *Extractor) extractPosts(root *goquery.Document, pageID, pageURL string) []model.Post {
	var posts []model.Post
	root.Find("div[role='article']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(posts) >= x.opts.MaxPosts {
			return false
		}
		if label, _ := s.Attr("aria-label"); strings.Contains(label, "Comment") {
			return true
		}
		posts = append(posts, x.extractPost(s, pageID, pageURL))
		return true
	})
	return posts
}

func (x *Extractor) extractPost(s *goquery.Selection, pageID, pageURL string) model.Post {
	post := model.Post{
		ID:          uuid.New().String(),
		PageID:      pageID,
		ExtractedAt: time.Now().UTC(),
	}
	if domID, ok := s.Attr("id"); ok && domID != "" {
		post.ID = domID
	}

	// Permalink: first anchor whose href looks like a post link.
	s.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		if strings.Contains(href, "posts") || strings.Contains(href, "permalink") {
			post.URL = absoluteURL(pageURL, href)
			return false
		}
		return true
	})

	// Timestamp: first abbr/span carrying a title or data-utime attribute.
	s.Find("abbr, span").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if title, ok := el.Attr("title"); ok && title != "" {
			post.Timestamp = title
			return false
		}
		if _, ok := el.Attr("data-utime"); ok {
			post.Timestamp = cleanText(el.Text())
			return false
		}
		return true
	})

	// Main text: the first block element with a substantial amount of text.
	s.Find("p, span, div").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if text := cleanText(el.Text()); len(text) > 50 {
			post.Text = text
			return false
		}
		return true
	})

	// Media links. Profile thumbnails are not post content.
	s.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && !strings.Contains(strings.ToLower(src), "profile") {
			post.ImageURLs = append(post.ImageURLs, src)
		}
	})
	s.Find("video, div").Each(func(_ int, el *goquery.Selection) {
		id, ok := el.Attr("data-video-id")
		if !ok {
			id, ok = el.Attr("data-video")
		}
		if ok && id != "" {
			post.VideoURLs = append(post.VideoURLs, videoWatchURL(pageURL, id))
		}
	})

	// Reaction counts from display strings like "1.2K likes". Only leaf
	// elements qualify; containers aggregate unrelated text.
	s.Find("span, div").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 {
			return
		}
		text := strings.ToLower(cleanText(el.Text()))
		if len(text) > 60 || !digitRe.MatchString(text) {
			return
		}
		switch {
		case strings.Contains(text, "like"):
			post.Reactions.Likes = ParseCount(text)
		case strings.Contains(text, "comment"):
			post.Reactions.Comments = ParseCount(text)
		case strings.Contains(text, "share"):
			post.Reactions.Shares = ParseCount(text)
		}
	})

	post.Comments = x.extractComments(s)
	return post
}

// extractComments pulls a bounded sample of comments nested in a post.
func (x *Extractor) extractComments(s *goquery.Selection) []model.Comment {
	var comments []model.Comment
	s.Find("div[role='article']").EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if len(comments) >= x.opts.MaxComments {
			return false
		}
		label, _ := c.Attr("aria-label")
		if !strings.Contains(label, "Comment") {
			return true
		}

		comment := model.Comment{}
		c.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if href, ok := a.Attr("href"); ok && strings.Contains(href, "/user/") {
				comment.Author = cleanText(a.Text())
				return false
			}
			return true
		})
		c.Find("span, div").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if el.ParentsFiltered("a").Length() > 0 {
				return true
			}
			if text := cleanText(el.Text()); len(text) > 5 {
				comment.Text = text
				return false
			}
			return true
		})
		c.Find("abbr, span").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if title, ok := el.Attr("title"); ok && title != "" {
				comment.Timestamp = title
				return false
			}
			if text := cleanText(el.Text()); strings.Contains(strings.ToLower(text), "ago") {
				comment.Timestamp = text
				return false
			}
			return true
		})

		if comment.Text != "" {
			comments = append(comments, comment)
		}
		return true
	})
	return comments
}

// absoluteURL resolves a relative href against the page's origin.
func absoluteURL(pageURL, href string) string {
	if !strings.HasPrefix(href, "/") {
		return href
	}
	origin := pageURL
	if idx := strings.Index(origin, "://"); idx >= 0 {
		if slash := strings.Index(origin[idx+3:], "/"); slash >= 0 {
			origin = origin[:idx+3+slash]
		}
	}
	return origin + href
}

// videoWatchURL builds a watch link for an embedded video id.
func videoWatchURL(pageURL, id string) string {
	return absoluteURL(pageURL, "/watch/?v="+id)
}
