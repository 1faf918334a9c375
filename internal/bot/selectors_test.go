package bot

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponsePatterns(t *testing.T) {
	const gql = DefaultBaseURL + "/graphql/query?doc_id=7&fb_api_req_friendly_name="
	tests := []struct {
		name    string
		pattern *regexp.Regexp
		url     string
		want    bool
	}{
		{"like endpoint", ReLike, DefaultBaseURL + "/api/v1/web/likes/3141/like/", true},
		{"unlike is not like", ReLike, DefaultBaseURL + "/api/v1/web/likes/3141/unlike/", false},
		{"like mutation", ReLike, gql + "usePolarisLikeMediaLikeMutation", true},
		{"unrelated poll", ReLike, gql + "PolarisNotificationsQuery", false},
		{"bare graphql", ReSave, DefaultBaseURL + "/graphql/query", false},
		{"name prefix only", ReFollow, gql + "usePolarisFollowMutationExtra", false},
		{"name before other params", ReUnfollow, DefaultBaseURL + "/graphql/query?fb_api_req_friendly_name=usePolarisUnfollowMutation&doc_id=9", true},
		{"media info query", ReMediaInfo, gql + "PolarisPostActionLoadPostQueryQuery", true},
		{"media info ignores comments", ReMediaInfo, gql + "PolarisPostCommentsPaginationQuery", false},
		{"profile feed second name", ReProfileFeed, gql + "PolarisProfilePostsTabContentQuery_connection", true},
		{"timeline endpoint", ReFeedTimeline, DefaultBaseURL + "/api/v1/feed/timeline/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.MatchString(tt.url))
		})
	}
}
