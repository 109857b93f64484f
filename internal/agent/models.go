// Package agent runs the knowledge-guided decision loop: sense the page,
// consult learned knowledge, ask the decision oracle for exactly one action,
// execute it, observe, repeat. Terminal states feed back into the knowledge
// store so the next run starts smarter.
package agent

import (
	"github.com/voidmaw/webclaw/internal/tools"
)

// RunState is the lifecycle state of one goal attempt.
type RunState string

const (
	// StateRunning means the loop is still taking actions.
	StateRunning RunState = "RUNNING"
	// StateDone means the oracle declared the goal achieved.
	StateDone RunState = "DONE"
	// StateGivenUp means the oracle (or an unparseable response) ended the
	// attempt before the budget ran out.
	StateGivenUp RunState = "GIVEN_UP"
	// StateExhausted means the step budget ran out with no terminal decision.
	StateExhausted RunState = "EXHAUSTED"
)

// Terminal reports whether the state ends the run.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateGivenUp || s == StateExhausted
}

// RunResult summarizes one finished goal attempt.
type RunResult struct {
	RunID   string
	Goal    string
	State   RunState
	Summary string
	Steps   int
	Site    string
	Task    string
}

// Succeeded reports whether the run reached its goal.
func (r RunResult) Succeeded() bool { return r.State == StateDone }

// historyEntry records one executed action and its observed outcome.
type historyEntry struct {
	Step   int
	Tool   string
	Params map[string]interface{}
	Reason string
	Result tools.Result
}
