package types

import "time"

// PostIdentifier is anything that names a post: a raw id, a post URL or a scraped post.
type PostIdentifier interface {
	PostID() string
}

// PostRef is a post id or post URL supplied by a caller.
type PostRef string

func (r PostRef) PostID() string { return string(r) }

// PostInfo is a lightweight entry produced while paging through a profile grid
type PostInfo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Pinned bool   `json:"pinned"`
}

func (p PostInfo) PostID() string { return p.ID }

// Post represents the full detail of a single post
type Post struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Username    string    `json:"username"`
	Caption     string    `json:"caption"`
	Media       []string  `json:"media"`
	Likes       int       `json:"likes"`
	Views       *int      `json:"views,omitempty"`
	IsVideo     bool      `json:"is_video"`
	IsSlideshow bool      `json:"is_slideshow"`
	Timestamp   time.Time `json:"timestamp"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

func (p Post) PostID() string { return p.ID }

// Comment is a single comment on a post. Replies are never fetched.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Poster    string    `json:"poster"`
	Text      string    `json:"text"`
	Timestamp int64     `json:"timestamp"` // epoch millis
	Likes     int       `json:"likes"`
	Replies   []Comment `json:"replies,omitempty"`
}

// Gender values accepted by the profile editor
type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderCustom         Gender = "custom"
	GenderPreferNotToSay Gender = "prefer-not-to-say"
)

// Profile holds editable account fields. Zero values are left untouched on update.
type Profile struct {
	Username     string `json:"username,omitempty" toml:"username,omitempty"`
	Password     string `json:"password,omitempty" toml:"password,omitempty"`
	Email        string `json:"email,omitempty" toml:"email,omitempty"`
	Name         string `json:"name,omitempty" toml:"name,omitempty"`
	Phone        string `json:"phone,omitempty" toml:"phone,omitempty"`
	Gender       Gender `json:"gender,omitempty" toml:"gender,omitempty"`
	CustomGender string `json:"custom_gender,omitempty" toml:"custom_gender,omitempty"`
	Bio          string `json:"bio,omitempty" toml:"bio,omitempty"`
	Website      string `json:"website,omitempty" toml:"website,omitempty"`
	Chaining     *bool  `json:"chaining,omitempty" toml:"chaining,omitempty"`
}

// PostOptions are the optional fields of the create-post wizard
type PostOptions struct {
	Caption         string `json:"caption,omitempty"`
	Location        string `json:"location,omitempty"`
	AltText         string `json:"alt_text,omitempty"`
	HideLikes       *bool  `json:"hide_likes,omitempty"`
	DisableComments *bool  `json:"disable_comments,omitempty"`
}

// User is the public summary of an account
type User struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Website   string    `json:"website"`
	Followers int       `json:"followers"`
	Following int       `json:"following"`
	PostCount int       `json:"post_count"`
	Private   bool      `json:"private"`
	Verified  bool      `json:"verified"`
	ScrapedAt time.Time `json:"scraped_at"`
}
