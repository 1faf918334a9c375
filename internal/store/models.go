package store

import "time"

// Listing is one grid entry seen on a profile during a scrape run
type Listing struct {
	RunID    string    `json:"run_id"`
	Username string    `json:"username"`
	PostID   string    `json:"post_id"`
	URL      string    `json:"url"`
	Pinned   bool      `json:"pinned"`
	Position int       `json:"position"` // 0 is the first grid cell
	SeenAt   time.Time `json:"seen_at"`
}

// Run summarises the latest scrape of a profile
type Run struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	SeenAt   time.Time `json:"seen_at"`
	Posts    int       `json:"posts"`
}
