package agent

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// canonical marshals with sorted map keys so two parameter maps with the same
// contents always produce the same signature.
var canonical = jsoniter.Config{SortMapKeys: true}.Froze()

const looseWindow = 5

// actionSignature identifies one executed action for repetition detection.
type actionSignature struct {
	key     string
	tool    string
	success bool
}

// LoopDetector notices when the oracle is stuck repeating actions that keep
// failing. Two patterns count as looping: the same failing action N times in
// a row, and oscillation between at most two failing actions across the last
// five steps.
type LoopDetector struct {
	threshold int
	history   []actionSignature
}

// NewLoopDetector creates a detector that trips after threshold identical
// consecutive failures.
func NewLoopDetector(threshold int) *LoopDetector {
	if threshold < 2 {
		threshold = 2
	}
	return &LoopDetector{threshold: threshold}
}

// Record adds one executed action and its outcome.
func (d *LoopDetector) Record(tool string, params map[string]interface{}, success bool) {
	paramsJSON, err := canonical.MarshalToString(params)
	if err != nil {
		paramsJSON = fmt.Sprintf("%v", params)
	}
	d.history = append(d.history, actionSignature{
		key:     fmt.Sprintf("%s:%s:%t", tool, paramsJSON, success),
		tool:    tool,
		success: success,
	})
}

// Looping reports whether the recent history shows a stuck pattern.
func (d *LoopDetector) Looping() bool {
	if len(d.history) >= d.threshold {
		recent := d.history[len(d.history)-d.threshold:]
		identical := true
		for _, sig := range recent {
			if sig.success || sig.key != recent[0].key {
				identical = false
				break
			}
		}
		if identical {
			return true
		}
	}

	if len(d.history) >= looseWindow {
		recent := d.history[len(d.history)-looseWindow:]
		distinct := make(map[string]struct{}, looseWindow)
		allFailed := true
		for _, sig := range recent {
			distinct[sig.key] = struct{}{}
			if sig.success {
				allFailed = false
			}
		}
		if allFailed && len(distinct) <= 2 {
			return true
		}
	}

	return false
}

// Describe summarizes the dominant recent action, for logs and the loop
// warning shown to the oracle.
func (d *LoopDetector) Describe() string {
	if len(d.history) == 0 {
		return "no actions"
	}
	start := len(d.history) - looseWindow
	if start < 0 {
		start = 0
	}
	counts := make(map[string]int)
	for _, sig := range d.history[start:] {
		counts[sig.tool]++
	}
	bestTool, bestCount := "", 0
	for tool, n := range counts {
		if n > bestCount {
			bestTool, bestCount = tool, n
		}
	}
	return fmt.Sprintf("%q repeated %dx", bestTool, bestCount)
}

// LastFailure returns a description of the most recent failed action, for
// recording as a known-bad approach.
func (d *LoopDetector) LastFailure() (string, bool) {
	for i := len(d.history) - 1; i >= 0; i-- {
		if !d.history[i].success {
			return d.history[i].key[:len(d.history[i].key)-len(":false")], true
		}
	}
	return "", false
}

// Reset clears the history. Called once per task.
func (d *LoopDetector) Reset() {
	d.history = d.history[:0]
}
