package catalog

import "time"

// LatestChapter is the highest-index chapter of one series. It is computed per
// request and never stored on its own.
type LatestChapter struct {
	ParentID  string    `json:"parentId"`
	OrderKey  float64   `json:"orderKey"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChapterRef points at a neighbouring chapter.
type ChapterRef struct {
	Slug     string  `json:"slug"`
	Title    string  `json:"title"`
	OrderKey float64 `json:"orderKey"`
}

// Adjacency holds the chapters immediately after and before a reference index.
// Either side is nil at the ends of a series.
type Adjacency struct {
	Next *ChapterRef `json:"next"`
	Prev *ChapterRef `json:"prev"`
}

// SlugRef returns the slug and title of ref, or empty strings when ref is nil.
func (r *ChapterRef) SlugRef() (slug string, title string) {
	if r == nil {
		return "", ""
	}
	return r.Slug, r.Title
}
