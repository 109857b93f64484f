package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voidmaw/webclaw/internal/cdp"
)

const (
	defaultScrollAmount = 500
	defaultScrollBound  = 15
	scrollStep          = 400
	scrollSettle        = 500 * time.Millisecond
	scrollFindSettle    = 800 * time.Millisecond
	waitPollInterval    = 500 * time.Millisecond
)

func (r *Registry) registerAll() {
	r.register(&Tool{
		Name:        "navigate",
		Description: "Go to a URL. Params: url",
		run:         r.runNavigate,
	})
	r.register(&Tool{
		Name:        "click",
		Description: "Click element by text. Params: target",
		run:         r.runClick,
	})
	r.register(&Tool{
		Name:        "click_nth",
		Description: "Click Nth matching element. Params: target, index (0-based)",
		run:         r.runClickNth,
	})
	r.register(&Tool{
		Name:        "type",
		Description: "Type text. Params: text, field (optional)",
		run:         r.runType,
	})
	r.register(&Tool{
		Name:        "press",
		Description: "Press key. Params: key (Enter, Tab, Escape, etc.)",
		run:         r.runPress,
	})
	r.register(&Tool{
		Name:        "wait",
		Description: "Wait. Params: seconds (default 2), or text to poll for. Use after typing to wait for dropdowns.",
		run:         r.runWait,
	})
	r.register(&Tool{
		Name:        "scroll",
		Description: "Scroll page. Params: direction (up/down), amount (pixels, default 500)",
		run:         r.runScroll,
	})
	r.register(&Tool{
		Name:        "scroll_until_found",
		Description: "Scroll down looking for text. Params: text, max_iterations (default 15). For finding entries in long lists.",
		run:         r.runScrollUntilFound,
	})
}

func (r *Registry) runNavigate(ctx context.Context, params map[string]interface{}) Result {
	url := stringParam(params, "url", "")
	if url == "" {
		return Fail("navigate requires a url")
	}

	nav, err := r.browser.Navigate(ctx, url)
	if err != nil {
		return Fail("navigate: %v", err)
	}
	data := map[string]interface{}{"url": nav.URL}
	if nav.ReusedTab {
		data["reused_tab"] = true
	}
	return OK(data)
}

// clickScript tries three match strategies in order: text-containing nodes
// via XPath, aria-label substring, and interactive elements by text content.
const clickScript = `(function() {
	const target = %s;
	const lower = target.toLowerCase();

	const xpath = "//*[contains(text(), '" + target.replace(/'/g, "") + "')]";
	const byText = document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (byText) {
		byText.click();
		return "clicked: " + byText.tagName;
	}

	const byAria = document.querySelector('[aria-label*="' + target.replace(/"/g, "") + '" i]');
	if (byAria) {
		byAria.click();
		return "clicked aria: " + byAria.tagName;
	}

	const candidates = Array.from(document.querySelectorAll('button, a, [role="button"]'));
	for (const el of candidates) {
		if (el.textContent.toLowerCase().includes(lower)) {
			el.click();
			return "clicked button: " + el.textContent.slice(0, 30);
		}
	}
	return "not found";
})()`

func (r *Registry) runClick(ctx context.Context, params map[string]interface{}) Result {
	target := stringParam(params, "target", "")
	if target == "" {
		return Fail("click requires a target")
	}

	value, err := r.browser.EvaluateString(ctx, fmt.Sprintf(clickScript, cdp.JSString(target)))
	if err != nil {
		return Fail("click: %v", err)
	}
	if !strings.Contains(value, "clicked") {
		return Fail("could not find %q", target)
	}
	return OK(map[string]interface{}{"clicked": target, "details": value})
}

const clickNthScript = `(function() {
	const target = %s;
	const index = %d;
	const matches = Array.from(document.querySelectorAll('button, a, [role="button"], span, div'))
		.filter(el => el.textContent.toLowerCase().includes(target.toLowerCase()));
	if (matches.length > index) {
		matches[index].click();
		return "clicked #" + index;
	}
	return "not found at index " + index + " of " + matches.length;
})()`

func (r *Registry) runClickNth(ctx context.Context, params map[string]interface{}) Result {
	target := stringParam(params, "target", "")
	if target == "" {
		return Fail("click_nth requires a target")
	}
	index := intParam(params, "index", 0)
	if index < 0 {
		return Fail("click_nth index must not be negative")
	}

	value, err := r.browser.EvaluateString(ctx,
		fmt.Sprintf(clickNthScript, cdp.JSString(target), index))
	if err != nil {
		return Fail("click_nth: %v", err)
	}
	if !strings.Contains(value, "clicked") {
		return Fail("%s for %q", value, target)
	}
	return OK(map[string]interface{}{"clicked": fmt.Sprintf("%s #%d", target, index)})
}

const focusScript = `(function() {
	const field = %s.replace(/"/g, "");
	const input = document.querySelector(
		'[placeholder*="' + field + '" i], [aria-label*="' + field + '" i], input[name*="' + field + '" i]');
	if (input) {
		input.focus();
		return "focused";
	}
	return "not found";
})()`

func (r *Registry) runType(ctx context.Context, params map[string]interface{}) Result {
	text := stringParam(params, "text", "")
	if text == "" {
		return Fail("type requires text")
	}

	if field := stringParam(params, "field", ""); field != "" {
		value, err := r.browser.EvaluateString(ctx, fmt.Sprintf(focusScript, cdp.JSString(field)))
		if err != nil {
			return Fail("type: focusing %q: %v", field, err)
		}
		if value != "focused" {
			return Fail("no input field matching %q", field)
		}
	}

	for _, ch := range text {
		s := string(ch)
		down := map[string]interface{}{"type": "keyDown", "text": s}
		up := map[string]interface{}{"type": "keyUp", "text": s}
		if err := r.browser.DispatchKeyEvent(ctx, down); err != nil {
			return Fail("type: %v", err)
		}
		if err := r.browser.DispatchKeyEvent(ctx, up); err != nil {
			return Fail("type: %v", err)
		}
		if err := sleepCtx(ctx, r.typeDelay); err != nil {
			return Fail("type: %v", err)
		}
	}

	preview := text
	if len(preview) > 50 {
		preview = preview[:50]
	}
	return OK(map[string]interface{}{"typed": preview})
}

func (r *Registry) runPress(ctx context.Context, params map[string]interface{}) Result {
	key := stringParam(params, "key", "")
	if key == "" {
		return Fail("press requires a key")
	}

	if err := r.browser.DispatchKeyEvent(ctx, keyEventParams("keyDown", key)); err != nil {
		return Fail("press: %v", err)
	}
	if err := r.browser.DispatchKeyEvent(ctx, keyEventParams("keyUp", key)); err != nil {
		return Fail("press: %v", err)
	}
	return OK(map[string]interface{}{"pressed": key})
}

func (r *Registry) runWait(ctx context.Context, params map[string]interface{}) Result {
	if text := stringParam(params, "text", ""); text != "" {
		timeout := time.Duration(intParam(params, "seconds", 10)) * time.Second
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			found, err := r.browser.HasText(ctx, text)
			if err != nil {
				return Fail("wait: %v", err)
			}
			if found {
				return OK(map[string]interface{}{"found": text})
			}
			if err := sleepCtx(ctx, waitPollInterval); err != nil {
				return Fail("wait: %v", err)
			}
		}
		return Fail("text not found within %s: %q", timeout, text)
	}

	seconds := intParam(params, "seconds", 2)
	if err := sleepCtx(ctx, time.Duration(seconds)*time.Second); err != nil {
		return Fail("wait: %v", err)
	}
	return OK(map[string]interface{}{"waited": fmt.Sprintf("%d seconds", seconds)})
}

func (r *Registry) scrollOnce(ctx context.Context, direction string, amount int) error {
	deltaY := amount
	if direction == "up" {
		deltaY = -amount
	}
	return r.browser.DispatchMouseEvent(ctx, map[string]interface{}{
		"type":   "mouseWheel",
		"x":      400,
		"y":      300,
		"deltaX": 0,
		"deltaY": deltaY,
	})
}

func (r *Registry) runScroll(ctx context.Context, params map[string]interface{}) Result {
	direction := stringParam(params, "direction", "down")
	if direction != "up" && direction != "down" {
		return Fail("scroll direction must be up or down, got %q", direction)
	}
	amount := intParam(params, "amount", defaultScrollAmount)

	if err := r.scrollOnce(ctx, direction, amount); err != nil {
		return Fail("scroll: %v", err)
	}
	if err := sleepCtx(ctx, scrollSettle); err != nil {
		return Fail("scroll: %v", err)
	}
	return OK(map[string]interface{}{"scrolled": direction})
}

func (r *Registry) runScrollUntilFound(ctx context.Context, params map[string]interface{}) Result {
	text := stringParam(params, "text", "")
	if text == "" {
		return Fail("scroll_until_found requires text")
	}
	bound := intParam(params, "max_iterations", defaultScrollBound)

	for i := 0; i < bound; i++ {
		found, err := r.browser.HasText(ctx, text)
		if err != nil {
			return Fail("scroll_until_found: %v", err)
		}
		if found {
			return OK(map[string]interface{}{"found": text, "scrolls": i})
		}
		if err := r.scrollOnce(ctx, "down", scrollStep); err != nil {
			return Fail("scroll_until_found: %v", err)
		}
		if err := sleepCtx(ctx, scrollFindSettle); err != nil {
			return Fail("scroll_until_found: %v", err)
		}
	}
	return Fail("%q not found after %d scrolls", text, bound)
}
