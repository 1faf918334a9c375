package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/bot"
	"github.com/freddie-nelson/ig-bot/internal/store"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

// Scraper is the part of *bot.Bot the watch job drives
type Scraper interface {
	Init(ctx context.Context) error
	Login(ctx context.Context) error
	Close(ctx context.Context) error
	GetUser(ctx context.Context, username string) (*types.User, error)
	GetPosts(ctx context.Context, username string, count int, opts bot.ListOptions) ([]types.PostInfo, error)
	GetPost(ctx context.Context, post types.PostIdentifier) (*types.Post, error)
	GetComments(ctx context.Context, post types.PostIdentifier, count int) ([]types.Comment, error)
}

// WatchOptions selects what each watch run scrapes
type WatchOptions struct {
	Users        []string
	PostsPerUser int
	// CommentsLimit comments are stored per post; zero skips comments
	CommentsLimit int
}

// Watcher scrapes a fixed set of profiles into the store on every run
type Watcher struct {
	newScraper func() Scraper
	store      *store.Store
	opts       WatchOptions
	logger     *zap.Logger
	newRunID   func() string
}

// NewWatcher creates a watcher. newScraper is called once per run so every run
// gets a fresh browser session.
func NewWatcher(newScraper func() Scraper, st *store.Store, opts WatchOptions, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		newScraper: newScraper,
		store:      st,
		opts:       opts,
		logger:     logger.Named("watch"),
		newRunID:   uuid.NewString,
	}
}

// Run is a Job. A failure on one user is logged and the run moves on to the next;
// the joined errors are returned at the end.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.opts.Users) == 0 {
		w.logger.Warn("No users to watch")
		return nil
	}

	s := w.newScraper()
	if err := s.Init(ctx); err != nil {
		return fmt.Errorf("init browser: %w", err)
	}
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("Failed to close browser", zap.Error(err))
		}
	}()
	if err := s.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	runID := w.newRunID()
	logger := w.logger.With(zap.String("run", runID))

	var errs []error
	for _, username := range w.opts.Users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		saved, err := w.watchUser(ctx, s, runID, username)
		if err != nil {
			logger.Error("Failed to scrape user", zap.String("user", username), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", username, err))
			continue
		}
		logger.Info("Scraped user", zap.String("user", username), zap.Int("new_posts", saved))
	}
	return errors.Join(errs...)
}

// watchUser returns the number of posts stored for the first time
func (w *Watcher) watchUser(ctx context.Context, s Scraper, runID, username string) (int, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return 0, err
	}
	if err := w.store.SaveUser(user); err != nil {
		return 0, err
	}

	infos, err := s.GetPosts(ctx, username, w.opts.PostsPerUser, bot.ListOptions{})
	if err != nil {
		return 0, err
	}
	if err := w.store.SavePostInfos(runID, username, infos); err != nil {
		return 0, err
	}

	fresh := 0
	for _, info := range infos {
		known, err := w.store.PostExists(info.ID)
		if err != nil {
			return fresh, err
		}
		if known && w.opts.CommentsLimit == 0 {
			continue
		}

		post, err := s.GetPost(ctx, info)
		if err != nil {
			return fresh, err
		}
		if err := w.store.SavePost(post); err != nil {
			return fresh, err
		}
		if !known {
			fresh++
		}

		if w.opts.CommentsLimit > 0 {
			comments, err := s.GetComments(ctx, info, w.opts.CommentsLimit)
			if err != nil {
				return fresh, err
			}
			if err := w.store.SaveComments(comments); err != nil {
				return fresh, err
			}
		}
	}
	return fresh, nil
}
