package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/browserutils/kooky"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/config"
	"github.com/freddie-nelson/ig-bot/internal/observability"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

type stubLauncher struct {
	err   error
	calls int
}

func (l *stubLauncher) Launch(ctx context.Context) (browser.Page, error) {
	l.calls++
	return nil, l.err
}

// isolate points every config, cache and credential source at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("HOME", dir)
	t.Setenv("INSTA_USERNAME", "")
	t.Setenv("INSTA_PASSWORD", "")
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	return dir
}

func testApp(launcher *stubLauncher) *app {
	return &app{
		newLauncher: func(browser.LaunchConfig, *zap.Logger) browser.Launcher { return launcher },
	}
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "ig.toml")

	out, err := run(t, testApp(&stubLauncher{}), "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
	assert.FileExists(t, path)

	_, err = run(t, testApp(&stubLauncher{}), "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")
	out, err = run(t, testApp(&stubLauncher{}), "--config", path, "config", "init", "--force")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	t.Setenv("INSTA_PASSWORD", "topsecret")
	out, err = run(t, testApp(&stubLauncher{}), "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "topsecret")
}

func TestSessionCommandsNeedCredentials(t *testing.T) {
	isolate(t)
	launcher := &stubLauncher{}

	_, err := run(t, testApp(launcher), "like", "abc123")

	assert.ErrorContains(t, err, "account.username")
	assert.Zero(t, launcher.calls)
}

func TestSessionLaunchFailure(t *testing.T) {
	isolate(t)
	t.Setenv("INSTA_USERNAME", "tester")
	t.Setenv("INSTA_PASSWORD", "secret123")
	boom := errors.New("no chrome")
	launcher := &stubLauncher{err: boom}

	_, err := run(t, testApp(launcher), "follow", "someone")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, launcher.calls)
}

func TestArgumentValidation(t *testing.T) {
	isolate(t)
	t.Setenv("INSTA_USERNAME", "tester")
	t.Setenv("INSTA_PASSWORD", "secret123")

	tests := []struct {
		name string
		args []string
	}{
		{"like needs a post", []string{"like"}},
		{"comment needs text", []string{"comment", "abc123"}},
		{"share needs a recipient", []string{"share", "abc123"}},
		{"privacy value", []string{"privacy", "friends-only"}},
		{"posts selectors", []string{"posts", "alice", "--pinned", "--recent"}},
		{"posts pin filters", []string{"posts", "alice", "--skip-pinned", "--only-pinned"}},
		{"profile set needs a file", []string{"profile", "set"}},
		{"open target", []string{"open", "downloads"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &stubLauncher{}
			_, err := run(t, testApp(launcher), tt.args...)
			assert.Error(t, err)
			assert.Zero(t, launcher.calls)
		})
	}
}

func TestCookiesImportAndStatus(t *testing.T) {
	isolate(t)
	a := testApp(&stubLauncher{})
	cfg, err := config.Load("")
	require.NoError(t, err)
	a.cfg = cfg
	a.logger = zaptest.NewLogger(t)

	read := func(context.Context) ([]*kooky.Cookie, error) {
		c := &kooky.Cookie{}
		c.Name = "sessionid"
		c.Value = "abc"
		c.Domain = ".instagram.com"
		c.Expires = time.Now().Add(time.Hour)
		return []*kooky.Cookie{c}, nil
	}
	cmd := a.cookiesImportCmd(read)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.True(t, a.cookieStore().IsValid())

	out, err := run(t, testApp(&stubLauncher{}), "cookies", "status")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "valid session"), out)

	_, err = run(t, testApp(&stubLauncher{}), "cookies", "clear")
	require.NoError(t, err)
	out, err = run(t, testApp(&stubLauncher{}), "cookies", "status")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "no valid session"), out)
}

func TestOpenTarget(t *testing.T) {
	dir := isolate(t)
	a := testApp(&stubLauncher{})
	cfg, err := config.Load("")
	require.NoError(t, err)
	a.cfg = cfg

	path, err := a.openTarget("config")
	require.NoError(t, err)
	assert.FileExists(t, path, "a missing config is created before opening")

	cache, err := a.openTarget("cache")
	require.NoError(t, err)
	assert.DirExists(t, cache)

	a.cfg.Logger.LogFile = filepath.Join(dir, "logs", "ig-bot.log")
	logs, err := a.openTarget("logs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs"), logs)
	assert.DirExists(t, logs)

	_, err = a.openTarget("desktop")
	assert.Error(t, err)
}

func TestReadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
bio = """two
lines"""
gender = "custom"
custom_gender = "agender"
chaining = false
`), 0o600))

	p, err := readProfile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "two\nlines", p.Bio)
	assert.Equal(t, types.GenderCustom, p.Gender)
	assert.Equal(t, "agender", p.CustomGender)
	require.NotNil(t, p.Chaining)
	assert.False(t, *p.Chaining)
	assert.Empty(t, p.Username)

	p, err = readProfile("-", strings.NewReader(`website = "https://example.com"`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", p.Website)

	_, err = readProfile("-", strings.NewReader(`biography = "typo"`))
	assert.ErrorContains(t, err, "unknown keys")
}

func TestBotOptions(t *testing.T) {
	isolate(t)
	cfg, err := config.Load("")
	require.NoError(t, err)
	a := &app{cfg: cfg}

	opts := a.botOptions()
	assert.Equal(t, cfg.Timeouts.Element, opts.ElementTimeout)
	assert.Equal(t, cfg.Timeouts.Upload, opts.UploadTimeout)
	assert.Equal(t, cfg.Actions.Interval, opts.ActionInterval)
	assert.NotNil(t, opts.Cookies)

	cfg.Account.RestoreSession = false
	assert.Nil(t, a.botOptions().Cookies)

	launch := a.launchConfig()
	assert.True(t, launch.Headless)
	assert.Equal(t, 1920, launch.WindowWidth)
}

func TestPrivacyLabel(t *testing.T) {
	assert.Equal(t, "private", privacyLabel(true))
	assert.Equal(t, "public", privacyLabel(false))
}
