package model

import "time"

// Page holds the profile-level information extracted from a crawled page.
type Page struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	FollowersRaw    string    `json:"followers_raw,omitempty"`
	Followers       int       `json:"followers"`
	Category        string    `json:"category,omitempty"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

// Reactions holds approximate engagement counts for a post. Counts come
// from display strings like "1.2K likes" and are rounded accordingly.
type Reactions struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// Comment is a single comment extracted from a post.
type Comment struct {
	Author    string `json:"author,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Post is one post extracted from a page, with its media links and a
// bounded sample of comments.
type Post struct {
	ID          string    `json:"id"`
	PageID      string    `json:"page_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	Timestamp   string    `json:"timestamp,omitempty"`
	Text        string    `json:"text"`
	Reactions   Reactions `json:"reactions"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	VideoURLs   []string  `json:"video_urls,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// MediaType distinguishes rows in the media table.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)
