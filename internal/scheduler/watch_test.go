package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/freddie-nelson/ig-bot/internal/bot"
	"github.com/freddie-nelson/ig-bot/internal/store"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) Init(ctx context.Context) error  { return m.Called().Error(0) }
func (m *mockScraper) Login(ctx context.Context) error { return m.Called().Error(0) }
func (m *mockScraper) Close(ctx context.Context) error { return m.Called().Error(0) }

func (m *mockScraper) GetUser(ctx context.Context, username string) (*types.User, error) {
	args := m.Called(username)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func (m *mockScraper) GetPosts(ctx context.Context, username string, count int, opts bot.ListOptions) ([]types.PostInfo, error) {
	args := m.Called(username, count)
	infos, _ := args.Get(0).([]types.PostInfo)
	return infos, args.Error(1)
}

func (m *mockScraper) GetPost(ctx context.Context, post types.PostIdentifier) (*types.Post, error) {
	args := m.Called(post.PostID())
	p, _ := args.Get(0).(*types.Post)
	return p, args.Error(1)
}

func (m *mockScraper) GetComments(ctx context.Context, post types.PostIdentifier, count int) ([]types.Comment, error) {
	args := m.Called(post.PostID(), count)
	c, _ := args.Get(0).([]types.Comment)
	return c, args.Error(1)
}

func newWatchStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "watch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func post(id, username string) *types.Post {
	return &types.Post{ID: id, URL: "https://www.instagram.com/p/" + id + "/", Username: username}
}

func TestWatcher_Run(t *testing.T) {
	st := newWatchStore(t)
	require.NoError(t, st.SavePost(post("known", "alice")))

	m := &mockScraper{}
	m.On("Init").Return(nil).Once()
	m.On("Login").Return(nil).Once()
	m.On("Close").Return(nil).Once()
	m.On("GetUser", "alice").Return(&types.User{Username: "alice", Followers: 3}, nil)
	m.On("GetPosts", "alice", 2).Return([]types.PostInfo{{ID: "fresh", Pinned: true}, {ID: "known"}}, nil)
	m.On("GetPost", "fresh").Return(post("fresh", "alice"), nil).Once()

	w := NewWatcher(func() Scraper { return m }, st, WatchOptions{Users: []string{"alice"}, PostsPerUser: 2}, zaptest.NewLogger(t))
	w.newRunID = func() string { return "run-1" }

	require.NoError(t, w.Run(context.Background()))
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "GetPost", "known")
	m.AssertNotCalled(t, "GetComments", mock.Anything, mock.Anything)

	listings, err := st.GetPostInfos("alice")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "run-1", listings[0].RunID)
	assert.True(t, listings[0].Pinned)

	posts, err := st.GetPosts("alice", 10)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	u, err := st.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, 3, u.Followers)
}

func TestWatcher_CommentsRefreshKnownPosts(t *testing.T) {
	st := newWatchStore(t)
	require.NoError(t, st.SavePost(post("known", "alice")))

	m := &mockScraper{}
	m.On("Init").Return(nil)
	m.On("Login").Return(nil)
	m.On("Close").Return(nil)
	m.On("GetUser", "alice").Return(&types.User{Username: "alice"}, nil)
	m.On("GetPosts", "alice", 1).Return([]types.PostInfo{{ID: "known"}}, nil)
	m.On("GetPost", "known").Return(post("known", "alice"), nil)
	m.On("GetComments", "known", 5).Return([]types.Comment{{ID: "c1", PostID: "known", Poster: "bob", Text: "hi"}}, nil)

	w := NewWatcher(func() Scraper { return m }, st, WatchOptions{Users: []string{"alice"}, PostsPerUser: 1, CommentsLimit: 5}, zaptest.NewLogger(t))

	require.NoError(t, w.Run(context.Background()))

	comments, err := st.GetComments("known")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "bob", comments[0].Poster)
}

func TestWatcher_ContinuesPastFailingUser(t *testing.T) {
	st := newWatchStore(t)
	blocked := errors.New("profile unavailable")

	m := &mockScraper{}
	m.On("Init").Return(nil)
	m.On("Login").Return(nil)
	m.On("Close").Return(nil).Once()
	m.On("GetUser", "gone").Return(nil, blocked)
	m.On("GetUser", "bob").Return(&types.User{Username: "bob"}, nil)
	m.On("GetPosts", "bob", 3).Return([]types.PostInfo(nil), nil)

	w := NewWatcher(func() Scraper { return m }, st, WatchOptions{Users: []string{"gone", "bob"}, PostsPerUser: 3}, zaptest.NewLogger(t))

	err := w.Run(context.Background())

	assert.ErrorIs(t, err, blocked)
	assert.Contains(t, err.Error(), "gone")
	m.AssertCalled(t, "GetUser", "bob")
	m.AssertExpectations(t)
}

func TestWatcher_LoginFailureClosesBrowser(t *testing.T) {
	m := &mockScraper{}
	m.On("Init").Return(nil)
	m.On("Login").Return(errors.New("bad password"))
	m.On("Close").Return(nil).Once()

	w := NewWatcher(func() Scraper { return m }, newWatchStore(t), WatchOptions{Users: []string{"alice"}, PostsPerUser: 1}, zaptest.NewLogger(t))

	err := w.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "login")
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "GetUser", mock.Anything)
}

func TestWatcher_NoUsers(t *testing.T) {
	called := false
	newScraper := func() Scraper {
		called = true
		return nil
	}
	w := NewWatcher(newScraper, nil, WatchOptions{}, zaptest.NewLogger(t))

	assert.NoError(t, w.Run(context.Background()))
	assert.False(t, called)
}
