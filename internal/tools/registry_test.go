package tools

import (
	"context"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidmaw/webclaw/internal/cdp"
	"github.com/voidmaw/webclaw/internal/config"
	"go.uber.org/zap/zaptest"
)

// fakeProtocol scripts the protocol surface and records dispatched input events.
type fakeProtocol struct {
	navigateFn   func(url string) (cdp.NavigateResult, error)
	evalStringFn func(expression string) (string, error)
	hasTextFn    func(s string) (bool, error)

	keyEvents   []map[string]interface{}
	mouseEvents []map[string]interface{}
}

func (f *fakeProtocol) Navigate(_ context.Context, url string) (cdp.NavigateResult, error) {
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	return cdp.NavigateResult{URL: url}, nil
}

func (f *fakeProtocol) Evaluate(_ context.Context, expression string) (jsoniter.RawMessage, error) {
	return jsoniter.RawMessage(`null`), nil
}

func (f *fakeProtocol) EvaluateString(_ context.Context, expression string) (string, error) {
	if f.evalStringFn != nil {
		return f.evalStringFn(expression)
	}
	return "", nil
}

func (f *fakeProtocol) HasText(_ context.Context, s string) (bool, error) {
	if f.hasTextFn != nil {
		return f.hasTextFn(s)
	}
	return false, nil
}

func (f *fakeProtocol) DispatchKeyEvent(_ context.Context, params map[string]interface{}) error {
	f.keyEvents = append(f.keyEvents, params)
	return nil
}

func (f *fakeProtocol) DispatchMouseEvent(_ context.Context, params map[string]interface{}) error {
	f.mouseEvents = append(f.mouseEvents, params)
	return nil
}

func newTestRegistry(t *testing.T, browser Protocol) *Registry {
	t.Helper()
	return NewRegistry(browser, config.BrowserConfig{}, zaptest.NewLogger(t))
}

func TestRegistryCatalogue(t *testing.T) {
	r := newTestRegistry(t, &fakeProtocol{})

	assert.Equal(t, []string{
		"navigate", "click", "click_nth", "type", "press", "wait", "scroll", "scroll_until_found",
	}, r.Names())

	catalogue := r.Catalogue()
	for _, name := range r.Names() {
		assert.Contains(t, catalogue, "- "+name+": ")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t, &fakeProtocol{})
	res := r.Execute(context.Background(), "teleport", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestNavigateTool(t *testing.T) {
	t.Run("requires a url", func(t *testing.T) {
		r := newTestRegistry(t, &fakeProtocol{})
		res := r.Execute(context.Background(), "navigate", map[string]interface{}{})
		assert.False(t, res.Success)
	})

	t.Run("reports tab reuse", func(t *testing.T) {
		fake := &fakeProtocol{
			navigateFn: func(url string) (cdp.NavigateResult, error) {
				return cdp.NavigateResult{URL: url, ReusedTab: true}, nil
			},
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "navigate", map[string]interface{}{"url": "github.com"})
		require.True(t, res.Success)
		assert.Equal(t, true, res.Data["reused_tab"])
	})
}

func TestClickTool(t *testing.T) {
	t.Run("succeeds when a strategy matches", func(t *testing.T) {
		fake := &fakeProtocol{
			evalStringFn: func(expr string) (string, error) {
				assert.Contains(t, expr, `"Sign in"`)
				return "clicked button: Sign in", nil
			},
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "click", map[string]interface{}{"target": "Sign in"})
		require.True(t, res.Success)
		assert.Equal(t, "Sign in", res.Data["clicked"])
	})

	t.Run("fails explicitly when nothing matches", func(t *testing.T) {
		fake := &fakeProtocol{
			evalStringFn: func(string) (string, error) { return "not found", nil },
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "click", map[string]interface{}{"target": "Ghost"})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "Ghost")
	})
}

func TestClickNthTool(t *testing.T) {
	t.Run("fails on out of range index", func(t *testing.T) {
		fake := &fakeProtocol{
			evalStringFn: func(string) (string, error) { return "not found at index 5 of 2", nil },
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "click_nth",
			map[string]interface{}{"target": "Reply", "index": float64(5)})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "index 5")
	})

	t.Run("rejects negative index", func(t *testing.T) {
		r := newTestRegistry(t, &fakeProtocol{})
		res := r.Execute(context.Background(), "click_nth",
			map[string]interface{}{"target": "Reply", "index": float64(-1)})
		assert.False(t, res.Success)
	})
}

func TestTypeTool(t *testing.T) {
	t.Run("dispatches a key pair per character", func(t *testing.T) {
		fake := &fakeProtocol{}
		r := newTestRegistry(t, fake)

		res := r.Execute(context.Background(), "type", map[string]interface{}{"text": "hey"})
		require.True(t, res.Success)
		require.Len(t, fake.keyEvents, 6)
		assert.Equal(t, "keyDown", fake.keyEvents[0]["type"])
		assert.Equal(t, "h", fake.keyEvents[0]["text"])
		assert.Equal(t, "keyUp", fake.keyEvents[1]["type"])
	})

	t.Run("fails when the field cannot be focused", func(t *testing.T) {
		fake := &fakeProtocol{
			evalStringFn: func(string) (string, error) { return "not found", nil },
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "type",
			map[string]interface{}{"text": "hello", "field": "Search"})
		assert.False(t, res.Success)
		assert.Empty(t, fake.keyEvents, "nothing should be typed without focus")
	})
}

func TestPressTool(t *testing.T) {
	fake := &fakeProtocol{}
	r := newTestRegistry(t, fake)

	res := r.Execute(context.Background(), "press", map[string]interface{}{"key": "Enter"})
	require.True(t, res.Success)
	require.Len(t, fake.keyEvents, 2)
	assert.Equal(t, 13, fake.keyEvents[0]["windowsVirtualKeyCode"])
	assert.Equal(t, "Enter", fake.keyEvents[0]["key"])

	// Unknown keys fall through with just the key name.
	fake.keyEvents = nil
	res = r.Execute(context.Background(), "press", map[string]interface{}{"key": "F13"})
	require.True(t, res.Success)
	assert.NotContains(t, fake.keyEvents[0], "windowsVirtualKeyCode")
}

func TestScrollTool(t *testing.T) {
	t.Run("scrolls up with negative delta", func(t *testing.T) {
		fake := &fakeProtocol{}
		r := newTestRegistry(t, fake)

		res := r.Execute(context.Background(), "scroll",
			map[string]interface{}{"direction": "up", "amount": float64(300)})
		require.True(t, res.Success)
		require.Len(t, fake.mouseEvents, 1)
		assert.Equal(t, "mouseWheel", fake.mouseEvents[0]["type"])
		assert.Equal(t, -300, fake.mouseEvents[0]["deltaY"])
	})

	t.Run("rejects sideways scrolling", func(t *testing.T) {
		r := newTestRegistry(t, &fakeProtocol{})
		res := r.Execute(context.Background(), "scroll", map[string]interface{}{"direction": "left"})
		assert.False(t, res.Success)
	})
}

func TestScrollUntilFoundTool(t *testing.T) {
	t.Run("reports iterations used", func(t *testing.T) {
		checks := 0
		fake := &fakeProtocol{
			hasTextFn: func(string) (bool, error) {
				checks++
				return checks >= 2, nil
			},
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "scroll_until_found",
			map[string]interface{}{"text": "Alice"})
		require.True(t, res.Success)
		assert.Equal(t, 1, res.Data["scrolls"])
		assert.Len(t, fake.mouseEvents, 1)
	})

	t.Run("fails after the bound is exhausted", func(t *testing.T) {
		fake := &fakeProtocol{
			hasTextFn: func(string) (bool, error) { return false, nil },
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "scroll_until_found",
			map[string]interface{}{"text": "Bob", "max_iterations": float64(2)})
		assert.False(t, res.Success)
		assert.Len(t, fake.mouseEvents, 2)
	})
}

func TestWaitTool(t *testing.T) {
	t.Run("returns once text appears", func(t *testing.T) {
		fake := &fakeProtocol{
			hasTextFn: func(s string) (bool, error) { return strings.Contains(s, "Inbox"), nil },
		}
		r := newTestRegistry(t, fake)
		res := r.Execute(context.Background(), "wait", map[string]interface{}{"text": "Inbox"})
		require.True(t, res.Success)
		assert.Equal(t, "Inbox", res.Data["found"])
	})

	t.Run("sleeps a fixed duration without text", func(t *testing.T) {
		r := newTestRegistry(t, &fakeProtocol{})
		res := r.Execute(context.Background(), "wait", map[string]interface{}{"seconds": float64(0)})
		require.True(t, res.Success)
		assert.Equal(t, "0 seconds", res.Data["waited"])
	})
}

func TestParamHelpers(t *testing.T) {
	params := map[string]interface{}{
		"count":  float64(3),
		"quoted": "7",
		"name":   "inbox",
		"junk":   "abc",
	}
	assert.Equal(t, 3, intParam(params, "count", 0))
	assert.Equal(t, 7, intParam(params, "quoted", 0))
	assert.Equal(t, 9, intParam(params, "missing", 9))
	assert.Equal(t, 5, intParam(params, "junk", 5))
	assert.Equal(t, "inbox", stringParam(params, "name", ""))
	assert.Equal(t, "x", stringParam(params, "missing", "x"))
}
