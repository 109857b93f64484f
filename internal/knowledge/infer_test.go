package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteFromGoal(t *testing.T) {
	cases := []struct {
		goal string
		want string
	}{
		{"send a dm to alice on instagram", "instagram.com"},
		{"post a tweet about the launch", "twitter.com"},
		{"search youtube for lofi", "youtube.com"},
		{"look something up on google", "google.com"},
		{"order a pizza", ""},
	}
	for _, tc := range cases {
		t.Run(tc.goal, func(t *testing.T) {
			assert.Equal(t, tc.want, SiteFromGoal(tc.goal))
		})
	}
}

func TestTaskFromGoal(t *testing.T) {
	cases := []struct {
		goal string
		want string
	}{
		{"send a dm to alice on instagram", "send_dm"},
		{"message bob on twitter", "send_dm"},
		{"follow nasa on instagram", "follow_user"},
		{"search for cat videos", "search"},
		{"like the latest post", "like_post"},
		{"reorganize my desktop", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.goal, func(t *testing.T) {
			assert.Equal(t, tc.want, TaskFromGoal(tc.goal))
		})
	}
}

func TestSiteFromURL(t *testing.T) {
	assert.Equal(t, "instagram.com", SiteFromURL("https://www.instagram.com/direct/inbox/"))
	assert.Equal(t, "news.ycombinator.com", SiteFromURL("http://news.ycombinator.com/item?id=1"))
	assert.Equal(t, "", SiteFromURL(""))
}

func TestForOracle(t *testing.T) {
	s := setupStoreTest(t)
	require.NoError(t, s.RecordSuccess("instagram.com", "send_dm", []Step{
		{Action: "click", Target: "Messages", Note: "left sidebar"},
		{Action: "type", Text: "hello", Field: "Message"},
		{Action: "wait", Seconds: 3},
	}))
	s.RecordFailure("instagram.com", "send_dm", "click the bell icon",
		"that is notifications", "use the Messages link")
	s.AddUserHint("instagram.com", "send_dm", "the DM page is instagram.com/direct")

	out := s.ForOracle("instagram.com", "send_dm")
	assert.Contains(t, out, "KNOWN WORKFLOW for send_dm on instagram.com")
	assert.Contains(t, out, "confidence 70%")
	assert.Contains(t, out, "1. CLICK: Messages (left sidebar)")
	assert.Contains(t, out, "WAIT 3 seconds")
	assert.Contains(t, out, "DON'T: click the bell icon")
	assert.Contains(t, out, "INSTEAD: use the Messages link")
	assert.Contains(t, out, "USER GUIDANCE:")
	assert.Contains(t, out, "the DM page is instagram.com/direct")
}

func TestForOracleUnknownSite(t *testing.T) {
	s := setupStoreTest(t)
	out := s.ForOracle("unknown.com", "send_dm")
	assert.NotContains(t, out, "KNOWN WORKFLOW")
	assert.NotContains(t, out, "KNOWN FAILURES")
}

func TestSummary(t *testing.T) {
	s := setupStoreTest(t)
	require.NoError(t, s.RecordSuccess("instagram.com", "send_dm",
		[]Step{{Action: "click", Target: "Messages"}}))

	out := s.Summary()
	assert.Contains(t, out, "Sites: 1")
	assert.Contains(t, out, "instagram.com: 1 workflows")
	assert.Contains(t, out, "send_dm (confidence 70%")
}
