package agent

import (
	"fmt"
	"strings"
)

const pageTextPromptLimit = 800

const systemPrompt = `You are an assistant that operates a real web browser on behalf of a user.
You see a screenshot of the current page plus its text, and you respond with
exactly one JSON object per turn. When knowledge from earlier runs is shown,
trust it: follow known workflows step by step and never retry approaches
listed as known failures.`

var promptRule = strings.Repeat("=", 70)

// promptInput gathers everything the user prompt is built from.
type promptInput struct {
	Goal        string
	URL         string
	Title       string
	PageText    string
	Knowledge   string
	LoopWarning string
	History     []historyEntry
	Catalogue   string
}

func buildUserPrompt(in promptInput) string {
	var b strings.Builder

	if in.Knowledge != "" {
		b.WriteString(in.Knowledge)
		b.WriteString("\n\n")
	}
	if in.LoopWarning != "" {
		b.WriteString(in.LoopWarning)
		b.WriteString("\n\n")
	}

	b.WriteString(promptRule + "\n")
	fmt.Fprintf(&b, "GOAL: %s\n", in.Goal)
	b.WriteString(promptRule + "\n\n")

	b.WriteString("CURRENT STATE:\n")
	fmt.Fprintf(&b, "- URL: %s\n", in.URL)
	fmt.Fprintf(&b, "- Title: %s\n", in.Title)
	fmt.Fprintf(&b, "- Page text: %s\n\n", truncatePrompt(in.PageText))

	b.WriteString("PREVIOUS ACTIONS:\n")
	b.WriteString(historyLines(in.History))
	b.WriteString("\n\n")

	b.WriteString("TOOLS:\n")
	b.WriteString(in.Catalogue)
	b.WriteString("\n\n")

	b.WriteString(promptRule + "\n")
	b.WriteString(`INSTRUCTIONS:
1. If a KNOWN WORKFLOW is shown above, follow it step by step
2. If KNOWN FAILURES are shown, avoid those approaches
3. Look at the screenshot to see what is on screen
4. Take ONE action that moves toward the goal
5. If the goal is achieved, respond with done
6. If you are stuck after trying several approaches, give up with an explanation

RESPONSES (JSON only):

Goal achieved:
{"done": true, "summary": "what was done"}

Cannot complete:
{"give_up": true, "reason": "why impossible"}

Next action:
{"tool": "name", "params": {"key": "value"}, "reason": "why"}

JSON:`)

	return b.String()
}

// historyLines renders the last five actions with their outcomes.
func historyLines(history []historyEntry) string {
	if len(history) == 0 {
		return "  [none yet]"
	}
	start := len(history) - 5
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, 5)
	for _, h := range history[start:] {
		params, err := canonical.MarshalToString(h.Params)
		if err != nil {
			params = "{}"
		}
		outcome := "ok"
		if !h.Result.Success {
			errText := h.Result.Error
			if len(errText) > 40 {
				errText = errText[:40]
			}
			outcome = "FAILED " + errText
		}
		lines = append(lines, fmt.Sprintf("  %d. %s(%s) -> %s", h.Step, h.Tool, params, outcome))
	}
	return strings.Join(lines, "\n")
}

func truncatePrompt(text string) string {
	if text == "" {
		return "[empty]"
	}
	runes := []rune(text)
	if len(runes) <= pageTextPromptLimit {
		return text
	}
	return string(runes[:pageTextPromptLimit])
}
