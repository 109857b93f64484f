package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopDetectorStrict(t *testing.T) {
	params := map[string]interface{}{"key": "Enter"}

	t.Run("three identical failures trip it", func(t *testing.T) {
		d := NewLoopDetector(3)
		d.Record("press", params, false)
		d.Record("press", params, false)
		assert.False(t, d.Looping(), "two failures should not trip the detector")
		d.Record("press", params, false)
		assert.True(t, d.Looping())
	})

	t.Run("a success in between resets the streak", func(t *testing.T) {
		d := NewLoopDetector(3)
		d.Record("press", params, false)
		d.Record("press", params, false)
		d.Record("press", params, true)
		d.Record("press", params, false)
		assert.False(t, d.Looping())
	})

	t.Run("different params are different actions", func(t *testing.T) {
		d := NewLoopDetector(3)
		d.Record("press", map[string]interface{}{"key": "Enter"}, false)
		d.Record("press", map[string]interface{}{"key": "Tab"}, false)
		d.Record("press", map[string]interface{}{"key": "Escape"}, false)
		assert.False(t, d.Looping())
	})

	t.Run("param key order does not matter", func(t *testing.T) {
		d := NewLoopDetector(3)
		d.Record("type", map[string]interface{}{"text": "hi", "field": "Search"}, false)
		d.Record("type", map[string]interface{}{"field": "Search", "text": "hi"}, false)
		d.Record("type", map[string]interface{}{"text": "hi", "field": "Search"}, false)
		assert.True(t, d.Looping())
	})
}

func TestLoopDetectorLoose(t *testing.T) {
	a := map[string]interface{}{"target": "Send"}
	b := map[string]interface{}{"key": "Enter"}

	t.Run("oscillating between two failing actions", func(t *testing.T) {
		d := NewLoopDetector(3)
		d.Record("click", a, false)
		d.Record("press", b, false)
		d.Record("click", a, false)
		d.Record("press", b, false)
		d.Record("click", a, false)
		assert.True(t, d.Looping())
	})

	t.Run("three distinct failing actions is still exploring", func(t *testing.T) {
		d := NewLoopDetector(3)
		d.Record("click", a, false)
		d.Record("press", b, false)
		d.Record("click", a, false)
		d.Record("press", b, false)
		d.Record("scroll", map[string]interface{}{"direction": "down"}, false)
		assert.False(t, d.Looping())
	})

	t.Run("one success in the window clears it", func(t *testing.T) {
		d := NewLoopDetector(3)
		d.Record("click", a, false)
		d.Record("press", b, false)
		d.Record("click", a, true)
		d.Record("press", b, false)
		d.Record("click", a, false)
		assert.False(t, d.Looping())
	})
}

func TestLoopDetectorLastFailure(t *testing.T) {
	d := NewLoopDetector(3)

	_, ok := d.LastFailure()
	assert.False(t, ok)

	d.Record("click", map[string]interface{}{"target": "Send"}, true)
	d.Record("press", map[string]interface{}{"key": "Enter"}, false)
	d.Record("click", map[string]interface{}{"target": "Post"}, true)

	failed, ok := d.LastFailure()
	require.True(t, ok)
	assert.Equal(t, `press:{"key":"Enter"}`, failed)
}

func TestLoopDetectorReset(t *testing.T) {
	params := map[string]interface{}{"key": "Enter"}
	d := NewLoopDetector(3)
	for i := 0; i < 3; i++ {
		d.Record("press", params, false)
	}
	require.True(t, d.Looping())

	d.Reset()
	assert.False(t, d.Looping())
	_, ok := d.LastFailure()
	assert.False(t, ok)
}
