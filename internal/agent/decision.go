package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// Decision is the oracle's answer for one step. Exactly one of the three
// shapes must be present: done+summary, give_up+reason, or tool+params.
type Decision struct {
	Done    bool                   `json:"done,omitempty"`
	Summary string                 `json:"summary,omitempty"`
	GiveUp  bool                   `json:"give_up,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// ParseDecision robustly extracts a JSON object from the oracle's response,
// handling markdown code fences or raw JSON, then validates that it matches
// exactly one decision shape. Anything else is an error; the loop converts
// that into a single give-up, never a retry.
func ParseDecision(response string) (Decision, error) {
	response = strings.TrimSpace(response)

	var jsonText string
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		jsonText = strings.TrimSpace(matches[1])
	} else {
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first == -1 || last == -1 || last < first {
			return Decision{}, fmt.Errorf("no JSON object in oracle response")
		}
		jsonText = response[first : last+1]
	}

	var d Decision
	if err := canonical.UnmarshalFromString(jsonText, &d); err != nil {
		return Decision{}, fmt.Errorf("decoding oracle response: %w", err)
	}

	shapes := 0
	if d.Done {
		shapes++
	}
	if d.GiveUp {
		shapes++
	}
	if d.Tool != "" {
		shapes++
	}
	switch shapes {
	case 0:
		return Decision{}, fmt.Errorf("oracle response matches no decision shape")
	case 1:
		return d, nil
	default:
		return Decision{}, fmt.Errorf("oracle response matches %d decision shapes", shapes)
	}
}
