// Package store keeps scraped posts, grid listings, comments and users in SQLite.
package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/freddie-nelson/ig-bot/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store handles all database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between goroutines
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		username TEXT,
		caption TEXT,
		media TEXT,
		likes INTEGER,
		views INTEGER,
		is_video BOOLEAN,
		is_slideshow BOOLEAN,
		timestamp DATETIME,
		scraped_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS post_listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		username TEXT NOT NULL,
		post_id TEXT NOT NULL,
		url TEXT NOT NULL,
		pinned BOOLEAN NOT NULL,
		position INTEGER NOT NULL,
		seen_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL,
		poster TEXT NOT NULL,
		text TEXT,
		timestamp INTEGER,
		likes INTEGER,
		scraped_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		name TEXT,
		bio TEXT,
		website TEXT,
		followers INTEGER,
		following INTEGER,
		post_count INTEGER,
		private BOOLEAN,
		verified BOOLEAN,
		scraped_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_username ON posts(username, timestamp);
	CREATE INDEX IF NOT EXISTS idx_listings_username ON post_listings(username, seen_at);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SavePost inserts or updates a post. Counters and caption are refreshed on conflict.
func (s *Store) SavePost(p *types.Post) error {
	mediaJSON, err := json.Marshal(p.Media)
	if err != nil {
		return err
	}
	var views sql.NullInt64
	if p.Views != nil {
		views = sql.NullInt64{Int64: int64(*p.Views), Valid: true}
	}
	scrapedAt := p.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = s.now()
	}

	_, err = s.db.Exec(`
		INSERT INTO posts (id, url, username, caption, media, likes, views,
			is_video, is_slideshow, timestamp, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			caption = excluded.caption,
			media = excluded.media,
			likes = excluded.likes,
			views = excluded.views,
			scraped_at = excluded.scraped_at
	`, p.ID, p.URL, p.Username, p.Caption, string(mediaJSON), p.Likes, views,
		p.IsVideo, p.IsSlideshow, p.Timestamp, scrapedAt)
	return err
}

// SavePostInfos records one scrape of username's grid under runID, in grid order
func (s *Store) SavePostInfos(runID, username string, infos []types.PostInfo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seenAt := s.now()
	for i, info := range infos {
		_, err := tx.Exec(`
			INSERT INTO post_listings (run_id, username, post_id, url, pinned, position, seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, username, info.ID, info.URL, info.Pinned, i, seenAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveComments upserts comments in one transaction
func (s *Store) SaveComments(comments []types.Comment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	scrapedAt := s.now()
	for _, c := range comments {
		_, err := tx.Exec(`
			INSERT INTO comments (id, post_id, poster, text, timestamp, likes, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				text = excluded.text,
				likes = excluded.likes,
				scraped_at = excluded.scraped_at
		`, c.ID, c.PostID, c.Poster, c.Text, c.Timestamp, c.Likes, scrapedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveUser inserts or refreshes a user summary
func (s *Store) SaveUser(u *types.User) error {
	scrapedAt := u.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = s.now()
	}
	_, err := s.db.Exec(`
		INSERT INTO users (username, name, bio, website, followers, following,
			post_count, private, verified, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			name = excluded.name,
			bio = excluded.bio,
			website = excluded.website,
			followers = excluded.followers,
			following = excluded.following,
			post_count = excluded.post_count,
			private = excluded.private,
			verified = excluded.verified,
			scraped_at = excluded.scraped_at
	`, u.Username, u.Name, u.Bio, u.Website, u.Followers, u.Following,
		u.PostCount, u.Private, u.Verified, scrapedAt)
	return err
}

// GetUser returns the stored summary for username, or nil when none is stored
func (s *Store) GetUser(username string) (*types.User, error) {
	var u types.User
	err := s.db.QueryRow(`
		SELECT username, name, bio, website, followers, following,
			post_count, private, verified, scraped_at
		FROM users WHERE username = ?
	`, username).Scan(&u.Username, &u.Name, &u.Bio, &u.Website, &u.Followers, &u.Following,
		&u.PostCount, &u.Private, &u.Verified, &u.ScrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetPosts returns username's stored posts, newest first
func (s *Store) GetPosts(username string, limit int) ([]types.Post, error) {
	rows, err := s.db.Query(`
		SELECT id, url, username, caption, media, likes, views,
			is_video, is_slideshow, timestamp, scraped_at
		FROM posts
		WHERE username = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, username, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

// GetComments returns the stored comments on a post
func (s *Store) GetComments(postID string) ([]types.Comment, error) {
	rows, err := s.db.Query(`
		SELECT id, post_id, poster, text, timestamp, likes
		FROM comments WHERE post_id = ?
		ORDER BY timestamp
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Poster, &c.Text, &c.Timestamp, &c.Likes); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// LatestRun returns the most recent scrape of username, or nil if it was never scraped
func (s *Store) LatestRun(username string) (*Run, error) {
	var r Run
	err := s.db.QueryRow(`
		SELECT run_id, username, seen_at FROM post_listings
		WHERE username = ?
		ORDER BY seen_at DESC, id DESC
		LIMIT 1
	`, username).Scan(&r.ID, &r.Username, &r.SeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM post_listings WHERE run_id = ? AND username = ?`,
		r.ID, username).Scan(&r.Posts)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetPostInfos returns the grid entries of username's latest run in grid order
func (s *Store) GetPostInfos(username string) ([]Listing, error) {
	run, err := s.LatestRun(username)
	if err != nil || run == nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT run_id, username, post_id, url, pinned, position, seen_at
		FROM post_listings
		WHERE run_id = ? AND username = ?
		ORDER BY position
	`, run.ID, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.RunID, &l.Username, &l.PostID, &l.URL, &l.Pinned, &l.Position, &l.SeenAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// PostExists checks if a post ID already exists
func (s *Store) PostExists(id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

func scanPosts(rows *sql.Rows) ([]types.Post, error) {
	var posts []types.Post
	for rows.Next() {
		var p types.Post
		var mediaJSON string
		var views sql.NullInt64

		err := rows.Scan(
			&p.ID, &p.URL, &p.Username, &p.Caption, &mediaJSON, &p.Likes, &views,
			&p.IsVideo, &p.IsSlideshow, &p.Timestamp, &p.ScrapedAt,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(mediaJSON), &p.Media); err != nil {
			return nil, err
		}
		if views.Valid {
			v := int(views.Int64)
			p.Views = &v
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
