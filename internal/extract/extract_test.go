package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pagecrawl/internal/model"
)

const pageFixture = `<html><body>
<h1>  Acme   Widgets </h1>
<img src="https://cdn.test/profile_pic_123.jpg">
<div><span>42.5K followers</span></div>
<div class="pageCategoryBar"><span>Retail Company</span></div>

<div role="article" id="post-1">
  <a href="/acme/posts/111">permalink</a>
  <abbr title="2026-08-01T10:00:00">2 weeks ago</abbr>
  <div>This is the main body of the first post, padded out well past the
  fifty character minimum so the heuristic picks it up.</div>
  <img src="https://cdn.test/photo1.jpg">
  <img src="https://cdn.test/profile_small.jpg">
  <div data-video-id="999"></div>
  <span>1.2K likes</span>
  <span>34 comments</span>
  <span>7 shares</span>
  <div role="article" aria-label="Comment by Jo">
    <a href="/user/jo">Jo</a>
    <span>Great post, thanks for sharing!</span>
    <span>3h ago</span>
  </div>
</div>

<div role="article" id="post-2">
  <a href="https://other.test/permalink/222">link</a>
  <div>Second post body, also comfortably longer than the fifty character
  floor used by the text heuristic.</div>
</div>
</body></html>`

func fixtureDoc(body string) *model.Document {
	return &model.Document{URL: "https://pages.test/acme", Body: body, StatusCode: 200}
}

func TestExtractPage_PageInfo(t *testing.T) {
	x := New(Options{})

	page, _, err := x.ExtractPage(fixtureDoc(pageFixture))
	require.NoError(t, err)

	assert.Equal(t, "Acme Widgets", page.Name)
	assert.Equal(t, "https://pages.test/acme", page.URL)
	assert.Equal(t, "https://cdn.test/profile_pic_123.jpg", page.ProfileImageURL)
	assert.Equal(t, 42500, page.Followers)
	assert.Contains(t, page.FollowersRaw, "followers")
	assert.Equal(t, "Retail Company", page.Category)
	assert.NotEmpty(t, page.ID)
}

func TestExtractPage_Posts(t *testing.T) {
	x := New(Options{})

	_, posts, err := x.ExtractPage(fixtureDoc(pageFixture))
	require.NoError(t, err)
	require.Len(t, posts, 2)

	first := posts[0]
	assert.Equal(t, "post-1", first.ID)
	assert.Equal(t, "https://pages.test/acme/posts/111", first.URL)
	assert.Equal(t, "2026-08-01T10:00:00", first.Timestamp)
	assert.Contains(t, first.Text, "main body of the first post")
	assert.Equal(t, []string{"https://cdn.test/photo1.jpg"}, first.ImageURLs,
		"profile thumbnails are not post media")
	assert.Equal(t, []string{"https://pages.test/watch/?v=999"}, first.VideoURLs)
	assert.Equal(t, 1200, first.Reactions.Likes)
	assert.Equal(t, 34, first.Reactions.Comments)
	assert.Equal(t, 7, first.Reactions.Shares)

	require.Len(t, first.Comments, 1)
	assert.Equal(t, "Jo", first.Comments[0].Author)
	assert.Contains(t, first.Comments[0].Text, "Great post")

	second := posts[1]
	assert.Equal(t, "post-2", second.ID)
	assert.Equal(t, "https://other.test/permalink/222", second.URL,
		"absolute permalinks pass through unchanged")
}

func TestExtractPage_MaxPostsBound(t *testing.T) {
	x := New(Options{MaxPosts: 1})

	_, posts, err := x.ExtractPage(fixtureDoc(pageFixture))
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestExtractPage_EmptyBody(t *testing.T) {
	x := New(Options{})

	page, posts, err := x.ExtractPage(fixtureDoc("<html><body></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, page.Name)
	assert.Empty(t, posts)
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"5 likes", 5},
		{"1.2K comments", 1200},
		{"3M", 3000000},
		{"1,234 likes", 1234},
		{"2 comments", 2},
		{"847k", 847000},
		{"no digits here", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := ParseCount(tc.in); got != tc.want {
			t.Errorf("ParseCount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
