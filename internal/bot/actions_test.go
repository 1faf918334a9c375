package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freddie-nelson/ig-bot/internal/browser"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

const likeURL = DefaultBaseURL + "/api/v1/web/likes/3141/like/"

// postPage serves post id with a like toggle that answers with status.
func postPage(p *fakePage, id string, liked bool, status int64) {
	var like, unlike *fakeEl
	like = newEl("").clicked(func() {
		p.emit(likeURL, status, `{"status":"ok"}`)
		if status == 200 {
			p.remove(SelLikeIcon)
			p.set(SelUnlikeIcon, unlike)
		}
	})
	unlike = newEl("").clicked(func() {
		p.emit(DefaultBaseURL+"/api/v1/web/likes/3141/unlike/", status, `{"status":"ok"}`)
		if status == 200 {
			p.remove(SelUnlikeIcon)
			p.set(SelLikeIcon, like)
		}
	})
	p.route("/p/"+id+"/", func() {
		if liked {
			p.set(SelUnlikeIcon, unlike)
		} else {
			p.set(SelLikeIcon, like)
		}
	})
}

func TestLikePost_Idempotent(t *testing.T) {
	p := newFakePage()
	postPage(p, "abc123", false, 200)
	b := loggedInBot(t, p)
	ctx := context.Background()

	require.NoError(t, b.LikePost(ctx, types.PostRef("abc123")))
	require.NoError(t, b.LikePost(ctx, types.PostRef("https://www.instagram.com/p/abc123/")))

	assert.Equal(t, 1, p.clickCount())
	assert.Equal(t, 1, p.navigationCount(), "second call should reuse the open post")
	assert.False(t, b.IsBusy())

	liked, err := b.IsPostLiked(ctx, types.PostRef("abc123"))
	require.NoError(t, err)
	assert.True(t, liked)
}

func TestUnlikePost_NotLikedIsNoop(t *testing.T) {
	p := newFakePage()
	postPage(p, "abc123", false, 200)
	b := loggedInBot(t, p)

	require.NoError(t, b.UnlikePost(context.Background(), types.PostRef("abc123")))

	assert.Zero(t, p.clickCount())
}

func TestUnlikePost_Liked(t *testing.T) {
	p := newFakePage()
	postPage(p, "abc123", true, 200)
	b := loggedInBot(t, p)

	require.NoError(t, b.UnlikePost(context.Background(), types.PostInfo{ID: "abc123"}))

	assert.Equal(t, 1, p.clickCount())
}

func TestLikePost_RemoteRejection(t *testing.T) {
	p := newFakePage()
	postPage(p, "abc123", false, 429)
	b := loggedInBot(t, p)

	err := b.LikePost(context.Background(), types.PostRef("abc123"))

	var rr *RemoteRejectionError
	require.ErrorAs(t, err, &rr)
	assert.Contains(t, rr.Message, "429")
	assert.False(t, b.IsBusy())
}

func TestLikePost_IgnoresUnrelatedQueries(t *testing.T) {
	p := newFakePage()
	like := newEl("").clicked(func() {
		p.emit(DefaultBaseURL+"/graphql/query?fb_api_req_friendly_name=PolarisNotificationsQuery&doc_id=1", 200, `{}`)
		p.emit(likeURL, 403, `{"status":"fail"}`)
	})
	p.route("/p/abc123/", func() { p.set(SelLikeIcon, like) })
	b := loggedInBot(t, p)

	err := b.LikePost(context.Background(), types.PostRef("abc123"))

	var rr *RemoteRejectionError
	require.ErrorAs(t, err, &rr)
	assert.Contains(t, rr.Message, "403")
}

func TestLikePost_NoResponseTimesOut(t *testing.T) {
	p := newFakePage()
	p.route("/p/abc123/", func() { p.set(SelLikeIcon, newEl("")) })
	b := loggedInBot(t, p)

	var te *TimeoutError
	require.ErrorAs(t, b.LikePost(context.Background(), types.PostRef("abc123")), &te)
	assert.Equal(t, "LikePost response", te.What)
}

func TestSavePost(t *testing.T) {
	p := newFakePage()
	var save, remove *fakeEl
	remove = newEl("")
	save = newEl("").clicked(func() {
		p.emit(DefaultBaseURL+"/api/v1/web/save/3141/save/", 200, `{}`)
		p.remove(SelSaveIcon)
		p.set(SelUnsaveIcon, remove)
	})
	p.route("/p/abc123/", func() { p.set(SelSaveIcon, save) })
	b := loggedInBot(t, p)
	ctx := context.Background()

	require.NoError(t, b.SavePost(ctx, types.PostRef("abc123")))
	require.NoError(t, b.SavePost(ctx, types.PostRef("abc123")))
	assert.Equal(t, 1, p.clickCount())

	saved, err := b.IsPostSaved(ctx, types.PostRef("abc123"))
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestComment(t *testing.T) {
	p := newFakePage()
	box := newEl("")
	submit := newEl("Post").clicked(func() {
		p.emit(DefaultBaseURL+"/api/v1/web/comments/3141/add/", 200, `{"status":"ok"}`)
	})
	p.route("/p/abc123/", func() {
		p.set(SelCommentBox, box)
		p.set(SelAnyButton, newEl("Follow"), submit)
	})
	b := loggedInBot(t, p)

	require.NoError(t, b.Comment(context.Background(), types.PostRef("abc123"), "first line\nsecond line"))

	assert.Equal(t, []string{"first line", "second line"}, p.typedInto(box))
	assert.Equal(t, "first line\nsecond line", box.currentValue())
	assert.Contains(t, p.presses, browser.KeyEnter)
}

func TestComment_Validation(t *testing.T) {
	p := newFakePage()
	b := loggedInBot(t, p)

	var ie *InvalidInputError
	require.ErrorAs(t, b.Comment(context.Background(), types.PostRef("abc123"), "   "), &ie)
	assert.Zero(t, p.navigationCount())
}

func profileHeader(p *fakePage, username, label string, onClick func()) *fakeEl {
	btn := newEl(label).clicked(onClick)
	p.route("/"+username+"/", func() {
		p.set(SelHeaderButton, newEl("Message"), btn)
	})
	return btn
}

func TestFollowUser(t *testing.T) {
	p := newFakePage()
	profileHeader(p, "someone", "Follow", func() {
		p.emit(DefaultBaseURL+"/api/v1/friendships/create/42/", 200, `{"status":"ok"}`)
	})
	b := loggedInBot(t, p)

	require.NoError(t, b.FollowUser(context.Background(), "someone"))
	assert.Equal(t, 1, p.clickCount())
}

func TestFollowUser_AlreadyFollowing(t *testing.T) {
	p := newFakePage()
	profileHeader(p, "someone", "Following", nil)
	b := loggedInBot(t, p)

	require.NoError(t, b.FollowUser(context.Background(), "someone"))
	assert.Zero(t, p.clickCount())
}

func TestUnfollowUser_ConfirmsDialog(t *testing.T) {
	p := newFakePage()
	confirm := newEl("Unfollow").clicked(func() {
		p.emit(DefaultBaseURL+"/api/v1/friendships/destroy/42/", 200, `{"status":"ok"}`)
	})
	profileHeader(p, "someone", "Requested", func() {
		p.set(SelAnyButton, newEl("Cancel"), confirm)
	})
	b := loggedInBot(t, p)

	require.NoError(t, b.UnfollowUser(context.Background(), "someone"))

	require.Equal(t, 2, p.clickCount())
	assert.Same(t, confirm, p.clicks[1])
}

func TestUnfollowUser_NotFollowing(t *testing.T) {
	p := newFakePage()
	profileHeader(p, "someone", "Follow", nil)
	b := loggedInBot(t, p)

	require.NoError(t, b.UnfollowUser(context.Background(), "someone"))
	assert.Zero(t, p.clickCount())
}

func TestSharePost(t *testing.T) {
	p := newFakePage()
	search, message := newEl(""), newEl("")
	alice, bob := newEl("alice"), newEl("bob")
	send := newEl("Send").clicked(func() { p.remove(SelDialog) })
	share := newEl("").clicked(func() {
		p.set(SelDialog, newEl(""))
		p.set(SelShareSearch, search)
		p.set(SelShareMessage, message)
		p.set(SelAnyButton, send)
		p.set(SelShareResult, alice, bob)
	})
	p.route("/p/abc123/", func() { p.set(SelShareIcon, share) })
	b := loggedInBot(t, p)

	require.NoError(t, b.SharePost(context.Background(), types.PostRef("abc123"), []string{"alice", "bob"}, "look"))

	assert.Equal(t, []string{"alice", "bob"}, p.typedInto(search))
	assert.Equal(t, "bob", search.currentValue(), "search box is cleared between recipients")
	assert.Equal(t, "look", message.currentValue())
	assert.Contains(t, p.clicks, alice)
	assert.Contains(t, p.clicks, bob)
	assert.Contains(t, p.clicks, send)
}

func TestSharePost_NeedsRecipients(t *testing.T) {
	p := newFakePage()
	b := loggedInBot(t, p)

	var ie *InvalidInputError
	require.ErrorAs(t, b.SharePost(context.Background(), types.PostRef("abc123"), nil, ""), &ie)
	require.ErrorAs(t, b.SharePost(context.Background(), types.PostRef("abc123"), []string{"bad name!"}, ""), &ie)
	assert.Zero(t, p.navigationCount())
}

func TestSetAccountPrivacy(t *testing.T) {
	p := newFakePage()
	var checkbox *fakeEl
	confirm := newEl("Switch to private").clicked(func() { checkbox.setProp("checked", true) })
	checkbox = newEl("").clicked(func() { p.set(SelAnyButton, confirm) })
	p.route(PathPrivacy, func() { p.set(SelPrivateCheckbox, checkbox) })
	b := loggedInBot(t, p)
	ctx := context.Background()

	private, err := b.IsAccountPrivate(ctx)
	require.NoError(t, err)
	assert.False(t, private)

	require.NoError(t, b.SetAccountPrivacy(ctx, true))
	assert.Equal(t, 2, p.clickCount())

	require.NoError(t, b.SetAccountPrivacy(ctx, true))
	assert.Equal(t, 2, p.clickCount(), "already private")
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "", "c"}, splitLines("a\r\nb\n\nc"))
	assert.Equal(t, []string{"single"}, splitLines("single"))
}
