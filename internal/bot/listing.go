package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/types"
	"github.com/freddie-nelson/ig-bot/internal/wait"
)

// ListOptions controls how pinned posts are treated by GetPosts.
type ListOptions struct {
	// FilterPinned drops pinned posts from the result.
	FilterPinned bool
	// OnlyPinned returns pinned posts only and stops at the first unpinned one.
	OnlyPinned bool
}

const (
	gridColumns   = 3
	gridRowHeight = 300
	maxScrollRows = 4
	maxPinned     = 3
)

var (
	reGridHref    = regexp.MustCompile(`/(?:p|reel)/([a-zA-Z0-9_-]+)`)
	reCommentHref = regexp.MustCompile(`/c/(\d+)`)
	reLikes       = regexp.MustCompile(`(?i)^([\d,.]+[km]?)\s+likes?`)
	reMetaLikes   = regexp.MustCompile(`(?i)([\d,.]+[km]?)\s+likes?`)
	reMetaUser    = regexp.MustCompile(` - ([a-zA-Z0-9_.]+) on `)
	reMetaCounts  = regexp.MustCompile(`(?i)([\d,.]+[km]?)\s+followers?,\s*([\d,.]+[km]?)\s+following,\s*([\d,.]+[km]?)\s+posts?`)
)

// GetPosts returns up to count posts from the profile grid of username, newest first.
func (b *Bot) GetPosts(ctx context.Context, username string, count int, opts ListOptions) ([]types.PostInfo, error) {
	ctx, release, err := b.guard(ctx, "GetPosts", loggedInOp...)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, invalid("count", strconv.Itoa(count), "must be positive")
	}
	if opts.FilterPinned && opts.OnlyPinned {
		return nil, invalid("options", "", "FilterPinned and OnlyPinned are mutually exclusive")
	}
	return b.getPosts(ctx, username, count, opts)
}

// GetPinnedPosts returns the pinned posts of username.
func (b *Bot) GetPinnedPosts(ctx context.Context, username string) ([]types.PostInfo, error) {
	return b.GetPosts(ctx, username, maxPinned, ListOptions{OnlyPinned: true})
}

// GetRecentPost returns the newest unpinned post of username, or nil when the
// profile has none.
func (b *Bot) GetRecentPost(ctx context.Context, username string) (*types.PostInfo, error) {
	posts, err := b.GetPosts(ctx, username, 1, ListOptions{FilterPinned: true})
	if err != nil || len(posts) == 0 {
		return nil, err
	}
	return &posts[0], nil
}

func (b *Bot) getPosts(ctx context.Context, username string, count int, opts ListOptions) ([]types.PostInfo, error) {
	if err := b.navigate(ctx, b.profileURL(username), true); err != nil {
		return nil, err
	}
	first, err := b.tryElement(ctx, SelGridLink, b.opts.ElementTimeout)
	if err != nil {
		return nil, err
	}
	if first == nil {
		b.log().Debug("Profile grid is empty", zap.String("user", username))
		return nil, nil
	}

	var (
		posts  []types.PostInfo
		seen   = make(map[string]bool)
		cursor string
	)
	p := b.currentPage(ctx)

	for round := 0; len(posts) < count; round++ {
		if round > 0 {
			rows := min((count-len(posts)+gridColumns-1)/gridColumns, maxScrollRows)
			_, err := b.softResponse(ctx, ReProfileFeed, "profile feed page", func(ctx context.Context) error {
				return p.Scroll(ctx, float64(rows*gridRowHeight))
			})
			if err != nil {
				return nil, err
			}
		}

		grid, err := b.readGrid(ctx)
		if err != nil {
			return nil, err
		}
		fresh := itemsAfter(grid, cursor, seen)
		if len(fresh) == 0 {
			break
		}

		for _, item := range fresh {
			seen[item.ID] = true
			cursor = item.ID
			if opts.OnlyPinned && !item.Pinned {
				return posts, nil
			}
			if opts.FilterPinned && item.Pinned {
				continue
			}
			posts = append(posts, item)
			if len(posts) == count {
				break
			}
		}
	}

	b.log().Debug("Collected posts", zap.String("user", username), zap.Int("count", len(posts)))
	return posts, nil
}

// itemsAfter returns the unseen items following cursor. The grid is virtualized, so
// when cursor has been recycled out of the DOM every unseen item is taken.
func itemsAfter(items []types.PostInfo, cursor string, seen map[string]bool) []types.PostInfo {
	start := 0
	if cursor != "" {
		if i := slices.IndexFunc(items, func(p types.PostInfo) bool { return p.ID == cursor }); i >= 0 {
			start = i + 1
		}
	}
	var out []types.PostInfo
	for _, item := range items[start:] {
		if !seen[item.ID] {
			out = append(out, item)
		}
	}
	return out
}

func (b *Bot) readGrid(ctx context.Context) ([]types.PostInfo, error) {
	links, err := b.queryAll(ctx, SelGridLink)
	if err != nil {
		return nil, err
	}
	items := make([]types.PostInfo, 0, len(links))
	for _, link := range links {
		href, ok, err := link.Attribute(ctx, "href")
		if err != nil {
			return nil, err
		}
		m := reGridHref.FindStringSubmatch(href)
		if !ok || m == nil {
			continue
		}
		icon, err := link.QuerySelector(ctx, SelPinnedIcon)
		if err != nil {
			return nil, err
		}
		items = append(items, types.PostInfo{ID: m[1], URL: b.postURL(m[1]), Pinned: icon != nil})
	}
	return items, nil
}

// softResponse runs trigger inside a response wait. Running out of time is not an
// error: the response is nil and the caller re-reads the DOM.
func (b *Bot) softResponse(ctx context.Context, pattern *regexp.Regexp, what string, trigger func(ctx context.Context) error) (*browser.Response, error) {
	respCtx, cancel := context.WithTimeout(ctx, b.opts.ResponseTimeout)
	defer cancel()

	resp, err := b.currentPage(ctx).WaitForResponse(respCtx, pattern, trigger)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		b.log().Debug("No response", zap.String("waiting_for", what), zap.Duration("after", b.opts.ResponseTimeout))
		return nil, nil
	}
	return nil, err
}

// GetComments returns up to count top-level comments of post in display order.
func (b *Bot) GetComments(ctx context.Context, post types.PostIdentifier, count int) ([]types.Comment, error) {
	ctx, release, err := b.guard(ctx, "GetComments", loggedInOp...)
	if err != nil {
		return nil, err
	}
	defer release()

	id, err := PostIDFromIdentifier(post)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, invalid("count", strconv.Itoa(count), "must be positive")
	}

	if err := b.navigate(ctx, b.postURL(id), true); err != nil {
		return nil, err
	}
	if row, err := b.tryElement(ctx, SelCommentRow, b.opts.ElementTimeout); err != nil || row == nil {
		return nil, err
	}

	p := b.currentPage(ctx)
	var comments []types.Comment
	cursor := 0

	for len(comments) < count {
		rows, err := b.queryAll(ctx, SelCommentRow)
		if err != nil {
			return nil, err
		}
		for i := cursor; i < len(rows) && len(comments) < count; i++ {
			c, ok, err := parseComment(ctx, id, i, rows[i])
			if err != nil {
				return nil, err
			}
			if ok {
				comments = append(comments, c)
			}
		}
		cursor = max(cursor, len(rows))
		if len(comments) >= count {
			break
		}

		more, err := b.query(ctx, SelLoadMore)
		if err != nil {
			return nil, err
		}
		if more == nil {
			break
		}
		if _, err := b.softResponse(ctx, ReComments, "comments page", func(ctx context.Context) error {
			return p.Click(ctx, more)
		}); err != nil {
			return nil, err
		}

		seen := cursor
		_, grew, err := wait.Try(ctx, func(ctx context.Context) (int, bool, error) {
			rows, err := b.queryAll(ctx, SelCommentRow)
			return len(rows), len(rows) > seen, err
		}, b.waitOpts(b.opts.SoftTimeout, "more comments"))
		if err != nil {
			return nil, err
		}
		if !grew {
			break
		}
	}

	b.log().Debug("Collected comments", zap.String("post", id), zap.Int("count", len(comments)))
	return comments, nil
}

func parseComment(ctx context.Context, postID string, index int, row browser.Element) (types.Comment, bool, error) {
	c := types.Comment{PostID: postID}

	user, err := row.QuerySelector(ctx, SelCommentUser)
	if err != nil || user == nil {
		return c, false, err
	}
	if c.Poster, err = user.Text(ctx); err != nil {
		return c, false, err
	}
	c.Poster = strings.TrimSpace(c.Poster)
	if c.Poster == "" {
		return c, false, nil
	}

	if text, err := row.QuerySelector(ctx, SelCommentText); err != nil {
		return c, false, err
	} else if text != nil {
		if c.Text, err = text.Text(ctx); err != nil {
			return c, false, err
		}
	}

	if ts, err := row.QuerySelector(ctx, SelCommentTime); err != nil {
		return c, false, err
	} else if ts != nil {
		if raw, ok, _ := ts.Attribute(ctx, "datetime"); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				c.Timestamp = t.UnixMilli()
			}
		}
	}

	spans, err := row.QuerySelectorAll(ctx, SelCommentLikes)
	if err != nil {
		return c, false, err
	}
	for _, s := range spans {
		text, err := s.Text(ctx)
		if err != nil {
			return c, false, err
		}
		if m := reLikes.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
			c.Likes = parseMetric(m[1])
			break
		}
	}

	c.ID = fmt.Sprintf("%s_%d", postID, index)
	if link, err := row.QuerySelector(ctx, SelCommentLink); err == nil && link != nil {
		if href, ok, _ := link.Attribute(ctx, "href"); ok {
			if m := reCommentHref.FindStringSubmatch(href); m != nil {
				c.ID = m[1]
			}
		}
	}
	return c, true, nil
}

// mediaItem is the subset of the media info payload the bot reads.
type mediaItem struct {
	Code      string `json:"code"`
	TakenAt   int64  `json:"taken_at"`
	MediaType int    `json:"media_type"`
	LikeCount int    `json:"like_count"`
	PlayCount *int   `json:"play_count"`
	ViewCount *int   `json:"view_count"`
	User      struct {
		Username string `json:"username"`
	} `json:"user"`
	Caption *struct {
		Text string `json:"text"`
	} `json:"caption"`
	ImageVersions struct {
		Candidates []struct {
			URL string `json:"url"`
		} `json:"candidates"`
	} `json:"image_versions2"`
	VideoVersions []struct {
		URL string `json:"url"`
	} `json:"video_versions"`
	CarouselMedia []mediaItem `json:"carousel_media"`
}

const (
	mediaTypeImage    = 1
	mediaTypeVideo    = 2
	mediaTypeCarousel = 8
)

func (m mediaItem) mediaURL() string {
	if len(m.VideoVersions) > 0 {
		return m.VideoVersions[0].URL
	}
	if len(m.ImageVersions.Candidates) > 0 {
		return m.ImageVersions.Candidates[0].URL
	}
	return ""
}

func (m mediaItem) toPost(url string) types.Post {
	p := types.Post{
		ID:          m.Code,
		URL:         url,
		Username:    m.User.Username,
		Likes:       m.LikeCount,
		IsVideo:     m.MediaType == mediaTypeVideo,
		IsSlideshow: m.MediaType == mediaTypeCarousel,
		ScrapedAt:   time.Now(),
	}
	if m.Caption != nil {
		p.Caption = m.Caption.Text
	}
	if m.TakenAt > 0 {
		p.Timestamp = time.Unix(m.TakenAt, 0)
	}
	switch {
	case m.PlayCount != nil:
		p.Views = m.PlayCount
	case m.ViewCount != nil:
		p.Views = m.ViewCount
	}
	if p.IsSlideshow {
		for _, child := range m.CarouselMedia {
			if u := child.mediaURL(); u != "" {
				p.Media = append(p.Media, u)
			}
		}
	} else if u := m.mediaURL(); u != "" {
		p.Media = []string{u}
	}
	return p
}

// GetPost fetches the details of post from the media info request the page makes
// on load, falling back to the page's meta tags.
func (b *Bot) GetPost(ctx context.Context, post types.PostIdentifier) (*types.Post, error) {
	ctx, release, err := b.guard(ctx, "GetPost", loggedInOp...)
	if err != nil {
		return nil, err
	}
	defer release()

	id, err := PostIDFromIdentifier(post)
	if err != nil {
		return nil, err
	}
	target := b.postURL(id)

	resp, err := b.softResponse(ctx, ReMediaInfo, "media info", func(ctx context.Context) error {
		return b.navigate(ctx, target, false)
	})
	if err != nil {
		return nil, err
	}

	if resp != nil {
		var payload struct {
			Items []mediaItem `json:"items"`
		}
		if err := resp.JSON(&payload); err != nil {
			b.log().Debug("Unreadable media info payload", zap.Error(err))
		} else if len(payload.Items) > 0 && payload.Items[0].Code == id {
			p := payload.Items[0].toPost(target)
			return &p, nil
		}
	}

	b.log().Debug("Falling back to meta tags", zap.String("post", id))
	return b.postFromMeta(ctx, id, target)
}

func (b *Bot) postFromMeta(ctx context.Context, id, target string) (*types.Post, error) {
	if _, err := b.waitForElement(ctx, SelMetaImage, b.opts.ElementTimeout); err != nil {
		return nil, err
	}
	meta := func(selector string) (string, error) {
		el, err := b.query(ctx, selector)
		if err != nil || el == nil {
			return "", err
		}
		content, _, err := el.Attribute(ctx, "content")
		return content, err
	}

	p := &types.Post{ID: id, URL: target, ScrapedAt: time.Now()}

	image, err := meta(SelMetaImage)
	if err != nil {
		return nil, err
	}
	video, err := meta(SelMetaVideo)
	if err != nil {
		return nil, err
	}
	if video != "" {
		p.IsVideo = true
		p.Media = []string{video}
	} else if image != "" {
		p.Media = []string{image}
	}

	desc, err := meta(SelMetaDesc)
	if err != nil {
		return nil, err
	}
	if m := reMetaLikes.FindStringSubmatch(desc); m != nil {
		p.Likes = parseMetric(m[1])
	}
	if m := reMetaUser.FindStringSubmatch(desc); m != nil {
		p.Username = m[1]
	}
	if i := strings.Index(desc, ": "); i >= 0 {
		p.Caption = strings.Trim(strings.TrimSpace(desc[i+2:]), `"“”`)
	}
	return p, nil
}

// GetFeed collects up to count post references from the home timeline.
func (b *Bot) GetFeed(ctx context.Context, count int) ([]types.PostInfo, error) {
	ctx, release, err := b.guard(ctx, "GetFeed", loggedInOp...)
	if err != nil {
		return nil, err
	}
	defer release()

	if count <= 0 {
		return nil, invalid("count", strconv.Itoa(count), "must be positive")
	}
	if err := b.navigatePath(ctx, "/", true); err != nil {
		return nil, err
	}
	if _, err := b.waitForElement(ctx, SelFeedLink, b.opts.ElementTimeout); err != nil {
		return nil, err
	}

	p := b.currentPage(ctx)
	var posts []types.PostInfo
	seenIDs := make(map[string]bool)

	for len(posts) < count {
		links, err := b.queryAll(ctx, SelFeedLink)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, link := range links {
			href, ok, err := link.Attribute(ctx, "href")
			if err != nil {
				return nil, err
			}
			m := reGridHref.FindStringSubmatch(href)
			if !ok || m == nil || seenIDs[m[1]] {
				continue
			}
			seenIDs[m[1]] = true
			posts = append(posts, types.PostInfo{ID: m[1], URL: b.postURL(m[1])})
			added++
		}
		if added == 0 || len(posts) >= count {
			break
		}

		if _, err := b.softResponse(ctx, ReFeedTimeline, "timeline page", func(ctx context.Context) error {
			return p.Scroll(ctx, 3*gridRowHeight)
		}); err != nil {
			return nil, err
		}
		if err := b.pause(ctx, 0.5); err != nil {
			return nil, err
		}
	}

	if len(posts) > count {
		posts = posts[:count]
	}
	return posts, nil
}

// GetFollowers returns up to count usernames following username.
func (b *Bot) GetFollowers(ctx context.Context, username string, count int) ([]string, error) {
	return b.followList(ctx, "GetFollowers", username, count, SelFollowersLink)
}

// GetFollowing returns up to count usernames username follows.
func (b *Bot) GetFollowing(ctx context.Context, username string, count int) ([]string, error) {
	return b.followList(ctx, "GetFollowing", username, count, SelFollowingLink)
}

func (b *Bot) followList(ctx context.Context, op, username string, count int, linkSelector string) ([]string, error) {
	ctx, release, err := b.guard(ctx, op, loggedInOp...)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, invalid("count", strconv.Itoa(count), "must be positive")
	}

	if err := b.navigate(ctx, b.profileURL(username), true); err != nil {
		return nil, err
	}
	link, err := b.waitForElement(ctx, linkSelector, b.opts.ElementTimeout)
	if err != nil {
		return nil, err
	}
	p := b.currentPage(ctx)
	if err := p.Click(ctx, link); err != nil {
		return nil, err
	}
	if _, err := b.waitForElement(ctx, SelFollowLinks, b.opts.ElementTimeout); err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for len(names) < count {
		entries, err := b.queryAll(ctx, SelFollowLinks)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, e := range entries {
			text, err := e.Text(ctx)
			if err != nil {
				return nil, err
			}
			name := strings.TrimSpace(text)
			if name == "" || seen[name] || validateUsername(name) != nil {
				continue
			}
			seen[name] = true
			names = append(names, name)
			added++
		}
		if added == 0 || len(names) >= count {
			break
		}

		last := entries[len(entries)-1]
		if _, err := b.softResponse(ctx, ReFriendshipsLi, "follow list page", func(ctx context.Context) error {
			return p.ScrollIntoView(ctx, last)
		}); err != nil {
			return nil, err
		}
	}

	if len(names) > count {
		names = names[:count]
	}
	return names, nil
}

// userPayload is the subset of the profile info payload the bot reads.
type userPayload struct {
	Data struct {
		User *struct {
			Username    string `json:"username"`
			FullName    string `json:"full_name"`
			Biography   string `json:"biography"`
			ExternalURL string `json:"external_url"`
			IsPrivate   bool   `json:"is_private"`
			IsVerified  bool   `json:"is_verified"`
			FollowedBy  struct {
				Count int `json:"count"`
			} `json:"edge_followed_by"`
			Follow struct {
				Count int `json:"count"`
			} `json:"edge_follow"`
			Media struct {
				Count int `json:"count"`
			} `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

// GetUser fetches the public summary of username.
func (b *Bot) GetUser(ctx context.Context, username string) (*types.User, error) {
	ctx, release, err := b.guard(ctx, "GetUser", loggedInOp...)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	target := b.profileURL(username)

	resp, err := b.softResponse(ctx, ReUserInfo, "profile info", func(ctx context.Context) error {
		return b.navigate(ctx, target, false)
	})
	if err != nil {
		return nil, err
	}
	if resp != nil {
		var payload userPayload
		if err := resp.JSON(&payload); err != nil {
			b.log().Debug("Unreadable profile info payload", zap.Error(err))
		} else if u := payload.Data.User; u != nil {
			return &types.User{
				Username:  u.Username,
				Name:      u.FullName,
				Bio:       u.Biography,
				Website:   u.ExternalURL,
				Followers: u.FollowedBy.Count,
				Following: u.Follow.Count,
				PostCount: u.Media.Count,
				Private:   u.IsPrivate,
				Verified:  u.IsVerified,
				ScrapedAt: time.Now(),
			}, nil
		}
	}

	b.log().Debug("Falling back to meta tags", zap.String("user", username))
	desc, err := b.waitForElement(ctx, SelMetaDesc, b.opts.ElementTimeout)
	if err != nil {
		return nil, err
	}
	content, _, err := desc.Attribute(ctx, "content")
	if err != nil {
		return nil, err
	}
	u := &types.User{Username: username, ScrapedAt: time.Now()}
	if m := reMetaCounts.FindStringSubmatch(content); m != nil {
		u.Followers = parseMetric(m[1])
		u.Following = parseMetric(m[2])
		u.PostCount = parseMetric(m[3])
	}
	if title, err := b.query(ctx, SelMetaTitle); err == nil && title != nil {
		if t, _, err := title.Attribute(ctx, "content"); err == nil {
			if i := strings.Index(t, " (@"); i > 0 {
				u.Name = t[:i]
			}
		}
	}
	return u, nil
}

// parseMetric converts display counts like "1,234", "12.5K" or "3M" to an int.
func parseMetric(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1000000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}
