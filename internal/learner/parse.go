package learner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/voidmaw/webclaw/internal/knowledge"
)

var waitSeconds = regexp.MustCompile(`(\d+)`)

// ParseInstruction turns one line of the fixed teaching grammar into a
// workflow step. The grammar is deliberately small:
//
//	click X
//	type X [in Y]
//	press K
//	wait [N seconds]
//	scroll up|down
//	go to URL
//
// An unrecognized line returns ok=false so the caller can re-prompt; the
// learner never guesses at intent.
func ParseInstruction(instruction string) (knowledge.Step, bool) {
	instruction = strings.TrimSpace(instruction)
	lower := strings.ToLower(instruction)

	switch {
	case strings.HasPrefix(lower, "click "):
		target := unquote(instruction[len("click "):])
		if target == "" {
			return knowledge.Step{}, false
		}
		return knowledge.Step{Action: "click", Target: target}, true

	case strings.HasPrefix(lower, "type "), strings.HasPrefix(lower, "enter "):
		rest := strings.SplitN(instruction, " ", 2)[1]
		if text, field, ok := strings.Cut(rest, " in "); ok {
			return knowledge.Step{
				Action: "type",
				Text:   unquote(text),
				Field:  unquote(field),
			}, true
		}
		if unquote(rest) == "" {
			return knowledge.Step{}, false
		}
		return knowledge.Step{Action: "type", Text: unquote(rest)}, true

	case strings.HasPrefix(lower, "press "):
		key := strings.TrimSpace(instruction[len("press "):])
		if key == "" {
			return knowledge.Step{}, false
		}
		return knowledge.Step{Action: "press", Key: key}, true

	case strings.HasPrefix(lower, "wait"):
		seconds := 2
		if m := waitSeconds.FindString(instruction); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				seconds = n
			}
		}
		return knowledge.Step{Action: "wait", Seconds: seconds}, true

	case strings.Contains(lower, "scroll"):
		direction := "up"
		if strings.Contains(lower, "down") {
			direction = "down"
		}
		return knowledge.Step{Action: "scroll", Direction: direction}, true

	case strings.HasPrefix(lower, "go to "), strings.HasPrefix(lower, "navigate to "):
		_, url, _ := strings.Cut(instruction, " to ")
		url = strings.TrimSpace(url)
		if url == "" {
			return knowledge.Step{}, false
		}
		if !strings.HasPrefix(url, "http") {
			url = "https://" + url
		}
		return knowledge.Step{Action: "navigate", URL: url}, true
	}

	return knowledge.Step{}, false
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// toolCall maps a workflow step onto the tool registry's vocabulary.
func toolCall(step knowledge.Step) (string, map[string]interface{}) {
	switch step.Action {
	case "navigate":
		return "navigate", map[string]interface{}{"url": step.URL}
	case "click":
		return "click", map[string]interface{}{"target": step.Target}
	case "type":
		params := map[string]interface{}{"text": step.Text}
		if step.Field != "" {
			params["field"] = step.Field
		}
		return "type", params
	case "press":
		return "press", map[string]interface{}{"key": step.Key}
	case "wait":
		seconds := step.Seconds
		if seconds <= 0 {
			seconds = 2
		}
		return "wait", map[string]interface{}{"seconds": seconds}
	case "scroll":
		params := map[string]interface{}{"direction": step.Direction}
		if step.Amount > 0 {
			params["amount"] = step.Amount
		}
		return "scroll", params
	default:
		return step.Action, map[string]interface{}{}
	}
}
