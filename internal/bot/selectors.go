package bot

import (
	"regexp"
	"strings"
)

// Instagram DOM selectors and endpoint patterns.
// These are isolated here because Instagram changes its markup frequently.
// Update these when a workflow breaks.

// Paths
const (
	PathLogin          = "/accounts/login/"
	PathLogout         = "/accounts/logout/"
	PathOnetap         = "/accounts/onetap/"
	PathEditProfile    = "/accounts/edit/"
	PathChangePassword = "/accounts/password/change/"
	PathPrivacy        = "/accounts/who_can_see_your_content/"
)

// Generic
const (
	SelDialog    = `div[role='dialog']`
	SelAlert     = `[role='alert']`
	SelAnyButton = `button, div[role='button']`
	SelToast     = `div > div > div > div > div > p`
)

// Session
const (
	SelUsernameInput = `input[name='username']`
	SelPasswordInput = `input[name='password']`
	SelSubmitButton  = `button[type='submit']`
	SelLoginSpinner  = `button[type='submit'] [data-visualcompletion='loading-state']`

	TextEssentialCookies = "Only allow essential cookies"
	TextNotNow           = "Not now"
)

// Profile editor
const (
	SelChainingCheckbox = `#pepChainingEnabled input[type='checkbox']`
	SelChainingLabel    = `#pepChainingEnabled label div`
	SelGender           = `#pepGender`
	SelGenderOptions    = `fieldset`
	SelCustomGender     = `input[name='customGenderSelection']`
	SelPhone            = `[id='pepPhone Number']`
	SelEmail            = `#pepEmail`
	SelBio              = `#pepBio`
	SelWebsite          = `#pepWebsite`
	SelName             = `#pepName`
	SelUsername         = `#pepUsername`

	SelOldPassword     = `#cppOldPassword`
	SelNewPassword     = `#cppNewPassword`
	SelConfirmPassword = `#cppConfirmPassword`

	TextSubmit          = "Submit"
	TextDone            = "Done"
	TextChangePassword  = "Change Password"
	TextProfileSaved    = "Profile saved."
	TextPasswordChanged = "Password changed."

	SelPrivateCheckbox = `input[type='checkbox']`
	TextSwitchPrivate  = "Switch to private"
	TextSwitchPublic   = "Switch to public"
)

// Create post
const (
	SelNewPost        = `[aria-label='New post']`
	SelCaption        = `textarea[aria-label='Write a caption...'], div[aria-label='Write a caption...']`
	SelLocationInput  = `input[name='creation-location-input']`
	SelLocationResult = `div[aria-hidden='false'] button div span`
	SelAltTextInput   = `input[placeholder='Write alt text...']`
	SelToggleLabel    = `label`
	SelUploadSpinner  = `img[alt='Spinner placeholder']`
	SelDialogSpan     = `div[role='dialog'] span`

	TextSelectFromComputer = "Select from computer"
	TextSelectOtherFiles   = "Select other files"
	TextNext               = "Next"
	TextShare              = "Share"
	TextAccessibility      = "Accessibility"
	TextAdvancedSettings   = "Advanced settings"
	TextHideLikes          = "Hide like and view counts on this post"
	TextTurnOffComments    = "Turn off commenting"
	TextCouldNotShare      = "Post couldn't be shared"
)

// Post page
const (
	SelLikeIcon   = `svg[aria-label='Like']`
	SelUnlikeIcon = `svg[aria-label='Unlike']`
	SelSaveIcon   = `svg[aria-label='Save']`
	SelUnsaveIcon = `svg[aria-label='Remove']`
	SelShareIcon  = `svg[aria-label='Share Post'], svg[aria-label='Share']`

	SelCommentBox   = `textarea[aria-label='Add a comment…']`
	SelCommentRow   = `ul ul > div > li, ul > div[role='button'] > li`
	SelCommentUser  = `h3 a, h2 a`
	SelCommentText  = `h3 + div > span, div > span[dir='auto']`
	SelCommentTime  = `time`
	SelCommentLikes = `button span`
	SelCommentLink  = `a[href*='/c/']`
	SelLoadMore     = `svg[aria-label='Load more comments']`
	SelMetaImage    = `meta[property='og:image']`
	SelMetaTitle    = `meta[property='og:title']`
	SelMetaDesc     = `meta[property='og:description']`
	SelMetaVideo    = `meta[property='og:video']`
	TextPostComment = "Post"

	SelShareSearch  = `input[name='queryBox'], input[placeholder='Search...']`
	SelShareResult  = `div[role='dialog'] div[role='button'] span`
	SelShareMessage = `input[name='shareCommentText'], textarea[placeholder='Write a message...']`
	TextSend        = "Send"
)

// Profile page
const (
	SelGridLink      = `main a[href*='/p/'], main a[href*='/reel/']`
	SelPinnedIcon    = `svg[aria-label='Pinned post icon']`
	SelHeaderButton  = `header button, header div[role='button']`
	SelFollowersLink = `a[href$='/followers/']`
	SelFollowingLink = `a[href$='/following/']`
	SelFollowLinks   = `div[role='dialog'] a[role='link'] span`

	TextFollow    = "Follow"
	TextFollowing = "Following"
	TextRequested = "Requested"
	TextUnfollow  = "Unfollow"

	SelFeedLink = `article a[href*='/p/']`
)

// Background requests used as completion and data signals. GraphQL traffic is only
// accepted for the named operation, since the page polls other queries constantly.
var (
	ReProfileFeed   = apiOrQuery(`/api/v1/feed/user/`, "PolarisProfilePostsQuery", "PolarisProfilePostsTabContentQuery_connection")
	ReComments      = apiOrQuery(`/api/v1/media/\d+/comments/`, "PolarisPostCommentsPaginationQuery")
	ReMediaInfo     = apiOrQuery(`/api/v1/media/\d+/info/`, "PolarisPostActionLoadPostQueryQuery")
	ReUserInfo      = regexp.MustCompile(`/api/v1/users/web_profile_info/`)
	ReLike          = apiOrQuery(`/api/v1/web/likes/\d+/like/`, "usePolarisLikeMediaLikeMutation")
	ReUnlike        = apiOrQuery(`/api/v1/web/likes/\d+/unlike/`, "usePolarisLikeMediaUnlikeMutation")
	ReSave          = apiOrQuery(`/api/v1/web/save/\d+/save/`, "usePolarisSaveMediaSaveMutation")
	ReUnsave        = apiOrQuery(`/api/v1/web/save/\d+/unsave/`, "usePolarisSaveMediaUnsaveMutation")
	ReCommentAdd    = regexp.MustCompile(`/api/v1/web/comments/\d+/add/`)
	ReFollow        = apiOrQuery(`/api/v1/friendships/create/\d+/`, "usePolarisFollowMutation")
	ReUnfollow      = apiOrQuery(`/api/v1/friendships/destroy/\d+/`, "usePolarisUnfollowMutation")
	ReFeedTimeline  = apiOrQuery(`/api/v1/feed/timeline/`, "PolarisFeedTimelineRootV2Query", "PolarisFeedRootPaginationCachedQuery_subscribe")
	ReFriendshipsLi = regexp.MustCompile(`/api/v1/friendships/\d+/(followers|following)/`)
)

// apiOrQuery matches the REST endpoint api or a /graphql/query request whose
// fb_api_req_friendly_name is one of names.
func apiOrQuery(api string, names ...string) *regexp.Regexp {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(api + `|/graphql/query/?\?(?:[^#]*&)?fb_api_req_friendly_name=(?:` + strings.Join(quoted, "|") + `)(?:&|#|$)`)
}
