package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freddie-nelson/ig-bot/internal/types"
)

func TestGuard_BusyRejectsWithoutNavigating(t *testing.T) {
	p := newFakePage()
	b := loggedInBot(t, p)

	_, release, err := b.guard(context.Background(), "Hold", needsFree)
	require.NoError(t, err)
	assert.True(t, b.IsBusy())

	var pe *PreconditionError
	require.ErrorAs(t, b.LikePost(context.Background(), types.PostRef("abc123")), &pe)
	assert.Equal(t, "LikePost", pe.Op)
	assert.Contains(t, pe.Hint, "another operation is in progress")
	assert.Zero(t, p.navigationCount())

	// The rejected call must not clear the holder's busy flag.
	assert.True(t, b.IsBusy())
	release()
	assert.False(t, b.IsBusy())
}

func TestGuard_RequiresLogin(t *testing.T) {
	p := newFakePage()
	b := newTestBot(t, p)
	b.state = StateInitialized
	b.page = p

	ctx := context.Background()
	calls := []struct {
		op   string
		call func() error
	}{
		{"LikePost", func() error { return b.LikePost(ctx, types.PostRef("abc")) }},
		{"CreatePost", func() error { return b.CreatePost(ctx, []string{"a.jpg"}, types.PostOptions{}) }},
		{"SetBio", func() error { return b.SetBio(ctx, "hi") }},
		{"GetPosts", func() error {
			_, err := b.GetPosts(ctx, "someone", 1, ListOptions{})
			return err
		}},
		{"Logout", func() error { return b.Logout(ctx) }},
	}
	for _, c := range calls {
		t.Run(c.op, func(t *testing.T) {
			var pe *PreconditionError
			require.ErrorAs(t, c.call(), &pe)
			assert.Equal(t, "must login before using "+c.op, pe.Hint)
			assert.False(t, b.IsBusy())
		})
	}
	assert.Zero(t, p.navigationCount())
}

func TestGuard_RequirementOrder(t *testing.T) {
	b := newTestBot(t, newFakePage())
	b.busy = true

	// Busy is reported before the missing session.
	err := b.check("LikePost", loggedInOp...)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Hint, "another operation is in progress")

	b.busy = false
	require.ErrorAs(t, b.check("LikePost", loggedInOp...), &pe)
	assert.Equal(t, "must initialize before using LikePost", pe.Hint)
}

func TestGuard_ReleasedAfterFailure(t *testing.T) {
	b := loggedInBot(t, newFakePage())

	var ie *InvalidInputError
	require.ErrorAs(t, b.LikePost(context.Background(), types.PostRef("not a post!")), &ie)
	assert.False(t, b.IsBusy())

	_, err := b.GetPosts(context.Background(), "someone", 0, ListOptions{})
	require.ErrorAs(t, err, &ie)
	assert.False(t, b.IsBusy())

	var te *TimeoutError
	require.ErrorAs(t, b.LikePost(context.Background(), types.PostRef("abc")), &te)
	assert.False(t, b.IsBusy())
}

func TestGuard_Concurrent(t *testing.T) {
	p := newFakePage()
	b := loggedInBot(t, p)
	_, release, err := b.guard(context.Background(), "Hold", loggedInOp...)
	require.NoError(t, err)
	defer release()

	errs := make(chan error, 4)
	for i := 0; i < cap(errs); i++ {
		go func() { errs <- b.SetBio(context.Background(), "hello") }()
	}
	for i := 0; i < cap(errs); i++ {
		var pe *PreconditionError
		assert.ErrorAs(t, <-errs, &pe)
	}
	assert.Zero(t, p.navigationCount())
}

func TestGuard_StaleReleaseAfterReinit(t *testing.T) {
	first := newFakePage()
	b := loggedInBot(t, first)

	staleCtx, staleRelease, err := b.guard(context.Background(), "Stale", loggedInOp...)
	require.NoError(t, err)

	require.NoError(t, b.Close(context.Background()))
	assert.ErrorIs(t, staleCtx.Err(), context.Canceled, "closing the session aborts its operations")

	second := newFakePage()
	b.launcher.(*fakeLauncher).page = second
	require.NoError(t, b.Init(context.Background()))

	_, release, err := b.guard(context.Background(), "Current", needsFree, needsInit)
	require.NoError(t, err)
	defer release()

	// The aborted operation finishing late must not free the new session.
	staleRelease()
	assert.True(t, b.IsBusy())
	_, _, err = b.guard(context.Background(), "Overlap", needsFree)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)

	assert.Same(t, first, b.currentPage(staleCtx))
	assert.Same(t, second, b.currentPage(context.Background()))
}
