package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupStoreTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.json")
	s, err := Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestOpen(t *testing.T) {
	t.Run("creates a default document when missing", func(t *testing.T) {
		s := setupStoreTest(t)
		_, err := os.Stat(s.Path())
		assert.NoError(t, err, "default document should be written on first open")
	})

	t.Run("recovers from a corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "knowledge.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		s, err := Open(path, zaptest.NewLogger(t))
		require.NoError(t, err)
		_, ok := s.Workflow("instagram.com", "send_dm")
		assert.False(t, ok)
	})
}

func TestFirstSuccessCreatesWorkflow(t *testing.T) {
	s := setupStoreTest(t)

	_, ok := s.Workflow("instagram.com", "send_dm")
	require.False(t, ok, "empty store should know nothing")

	steps := []Step{
		{Action: "navigate", URL: "https://instagram.com"},
		{Action: "click", Target: "Messages"},
	}
	require.NoError(t, s.RecordSuccess("instagram.com", "send_dm", steps))

	wf, ok := s.Workflow("instagram.com", "send_dm")
	require.True(t, ok)
	assert.Equal(t, steps, wf.Steps)
	assert.Greater(t, wf.Confidence, 0.5)
	assert.Less(t, wf.Confidence, 1.0)
	assert.Equal(t, 1, wf.SuccessCount)
	assert.Equal(t, "success", wf.LearnedFrom)
}

func TestRecordSuccess(t *testing.T) {
	t.Run("does not duplicate or replace steps", func(t *testing.T) {
		s := setupStoreTest(t)
		original := []Step{{Action: "click", Target: "Messages"}}
		require.NoError(t, s.RecordSuccess("instagram.com", "send_dm", original))

		different := []Step{{Action: "navigate", URL: "https://instagram.com/direct"}}
		require.NoError(t, s.RecordSuccess("instagram.com", "send_dm", different))

		wf, ok := s.Workflow("instagram.com", "send_dm")
		require.True(t, ok)
		assert.Equal(t, original, wf.Steps, "second success must keep the original steps")
		assert.Equal(t, 2, wf.SuccessCount)
		assert.InDelta(t, NewWorkflowConfidence+0.05, wf.Confidence, 1e-9)
	})

	t.Run("refuses to create an empty workflow", func(t *testing.T) {
		s := setupStoreTest(t)
		err := s.RecordSuccess("instagram.com", "send_dm", nil)
		require.Error(t, err)
		_, ok := s.Workflow("instagram.com", "send_dm")
		assert.False(t, ok, "nothing should be persisted")
	})

	t.Run("normalizes www prefix", func(t *testing.T) {
		s := setupStoreTest(t)
		require.NoError(t, s.RecordSuccess("www.Instagram.com", "search",
			[]Step{{Action: "click", Target: "Search"}}))
		_, ok := s.Workflow("instagram.com", "search")
		assert.True(t, ok)
	})
}

func TestConfidenceClamping(t *testing.T) {
	s := setupStoreTest(t)
	require.NoError(t, s.RecordSuccess("twitter.com", "send_dm",
		[]Step{{Action: "click", Target: "Messages"}}))

	// Drive confidence up against the ceiling.
	for i := 0; i < 20; i++ {
		require.NoError(t, s.RecordSuccess("twitter.com", "send_dm", nil))
	}
	wf, _ := s.Workflow("twitter.com", "send_dm")
	assert.InDelta(t, 1.0, wf.Confidence, 1e-9)

	// And down against the floor.
	for i := 0; i < 20; i++ {
		s.RecordWorkflowFailure("twitter.com", "send_dm")
	}
	wf, _ = s.Workflow("twitter.com", "send_dm")
	assert.InDelta(t, 0.1, wf.Confidence, 1e-9)
	assert.Equal(t, 20, wf.FailCount)
}

func TestRecordWorkflowFailureUnknown(t *testing.T) {
	s := setupStoreTest(t)
	// Must not create anything.
	s.RecordWorkflowFailure("nowhere.com", "send_dm")
	_, ok := s.Workflow("nowhere.com", "send_dm")
	assert.False(t, ok)
}

func TestAltDomains(t *testing.T) {
	s := setupStoreTest(t)
	require.NoError(t, s.RecordSuccess("twitter.com", "send_dm",
		[]Step{{Action: "click", Target: "Messages"}}))

	s.mu.Lock()
	s.doc.Sites["twitter.com"].AltDomains = []string{"x.com"}
	s.mu.Unlock()

	wf, ok := s.Workflow("x.com", "send_dm")
	require.True(t, ok, "alias lookup should resolve to twitter.com")
	assert.NotEmpty(t, wf.Steps)
}

func TestRecordFailureDedupe(t *testing.T) {
	s := setupStoreTest(t)

	s.RecordFailure("instagram.com", "send_dm", "click the paper plane icon",
		"icon is a share button", "use the Messages link in the sidebar")
	s.RecordFailure("instagram.com", "send_dm", "click the paper plane icon", "", "")

	failures := s.FailuresFor("instagram.com", "send_dm")
	require.Len(t, failures, 1, "identical failures must be deduplicated")
	assert.InDelta(t, 0.9, failures[0].Confidence, 1e-9)
	assert.False(t, failures[0].LastSeen.IsZero(), "repeat observation should stamp last_seen")
	assert.Equal(t, "use the Messages link in the sidebar", failures[0].CorrectApproach)

	// A different wrong approach is a distinct record.
	s.RecordFailure("instagram.com", "send_dm", "press Enter on the profile page", "", "")
	assert.Len(t, s.Failures("instagram.com"), 2)
}

func TestContacts(t *testing.T) {
	s := setupStoreTest(t)

	s.SetContact("Alice", "instagram", "alice_gram")
	s.SetContact("ALICE", "imessage", "+15551234567")

	name, handles, ok := s.Contact("alice")
	require.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.Equal(t, "alice_gram", handles["instagram"])
	assert.Equal(t, "+15551234567", handles["imessage"], "different casing must merge into one contact")

	_, _, ok = s.Contact("bob")
	assert.False(t, ok)
}

func TestUserHints(t *testing.T) {
	s := setupStoreTest(t)

	s.AddUserHint("www.instagram.com", "send_dm", "use the paper plane icon, not the bell")
	s.AddUserHint("instagram.com", "", "always dismiss the notifications popup first")
	s.AddUserHint("instagram.com", "follow_user", "search, then open the profile")

	hints := s.Hints("instagram.com", "send_dm")
	require.Len(t, hints, 2, "task-scoped and site-wide hints both apply")
	assert.Equal(t, "use the paper plane icon, not the bell", hints[0].Instruction)
	assert.False(t, hints[0].LearnedAt.IsZero())

	assert.Len(t, s.Hints("instagram.com", ""), 3)
	assert.Empty(t, s.Hints("twitter.com", "send_dm"))

	// Empty instructions are ignored.
	s.AddUserHint("instagram.com", "send_dm", "")
	assert.Len(t, s.Hints("instagram.com", "send_dm"), 2)
}

func TestPutWorkflow(t *testing.T) {
	s := setupStoreTest(t)
	require.NoError(t, s.RecordSuccess("instagram.com", "send_dm",
		[]Step{{Action: "click", Target: "old"}}))

	relearned := Workflow{
		Steps:            []Step{{Action: "click", Target: "new"}},
		SuccessIndicator: "Message sent",
		LearnedFrom:      "guided",
	}
	require.NoError(t, s.PutWorkflow("instagram.com", "send_dm", relearned))

	wf, ok := s.Workflow("instagram.com", "send_dm")
	require.True(t, ok)
	assert.Equal(t, "new", wf.Steps[0].Target, "explicit teaching replaces steps")
	assert.InDelta(t, NewWorkflowConfidence, wf.Confidence, 1e-9)

	assert.Error(t, s.PutWorkflow("instagram.com", "send_dm", Workflow{}))
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	logger := zaptest.NewLogger(t)

	s, err := Open(path, logger)
	require.NoError(t, err)

	require.NoError(t, s.RecordSuccess("instagram.com", "send_dm", []Step{
		{Action: "click", Target: "Messages", Note: "left sidebar"},
		{Action: "type", Text: "hi", Field: "Message"},
		{Action: "press", Key: "Enter"},
	}))
	s.RecordFailure("instagram.com", "send_dm", "click the bell icon", "that is notifications", "")
	s.SetContact("Alice", "instagram", "alice_gram")
	require.NoError(t, s.Save())

	reloaded, err := Open(path, logger)
	require.NoError(t, err)

	wf, ok := reloaded.Workflow("instagram.com", "send_dm")
	require.True(t, ok)
	assert.Len(t, wf.Steps, 3)
	assert.Equal(t, "left sidebar", wf.Steps[0].Note)

	failures := reloaded.FailuresFor("instagram.com", "send_dm")
	require.Len(t, failures, 1)
	assert.Equal(t, "click the bell icon", failures[0].WrongApproach)

	_, handles, ok := reloaded.Contact("alice")
	require.True(t, ok)
	assert.Equal(t, "alice_gram", handles["instagram"])
}

func TestSaveOnlyWhenDirty(t *testing.T) {
	s := setupStoreTest(t)
	require.NoError(t, s.Save())

	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	// A pure lookup must not mark the store dirty.
	s.Workflow("instagram.com", "send_dm")
	require.NoError(t, s.Save())

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
