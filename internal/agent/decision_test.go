package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	t.Run("raw json action", func(t *testing.T) {
		d, err := ParseDecision(`{"tool": "click", "params": {"target": "Send"}, "reason": "submit"}`)
		require.NoError(t, err)
		assert.Equal(t, "click", d.Tool)
		assert.Equal(t, "Send", d.Params["target"])
		assert.Equal(t, "submit", d.Reason)
	})

	t.Run("fenced json block", func(t *testing.T) {
		d, err := ParseDecision("Here is my decision:\n```json\n{\"done\": true, \"summary\": \"message sent\"}\n```")
		require.NoError(t, err)
		assert.True(t, d.Done)
		assert.Equal(t, "message sent", d.Summary)
	})

	t.Run("fence without language tag", func(t *testing.T) {
		d, err := ParseDecision("```\n{\"give_up\": true, \"reason\": \"login wall\"}\n```")
		require.NoError(t, err)
		assert.True(t, d.GiveUp)
		assert.Equal(t, "login wall", d.Reason)
	})

	t.Run("json buried in prose", func(t *testing.T) {
		d, err := ParseDecision(`I think the best move is {"tool": "press", "params": {"key": "Enter"}} here.`)
		require.NoError(t, err)
		assert.Equal(t, "press", d.Tool)
	})

	t.Run("no json at all", func(t *testing.T) {
		_, err := ParseDecision("I am not sure what to do next.")
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseDecision(`{"tool": "click", "params": `)
		assert.Error(t, err)
	})

	t.Run("no decision shape", func(t *testing.T) {
		_, err := ParseDecision(`{"reason": "thinking out loud"}`)
		assert.Error(t, err)
	})

	t.Run("two shapes at once", func(t *testing.T) {
		_, err := ParseDecision(`{"done": true, "give_up": true}`)
		assert.Error(t, err)
	})
}
