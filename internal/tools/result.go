package tools

import "fmt"

// Result is the uniform outcome of a tool execution. Failures are values, not
// errors: the decision loop feeds them back to the oracle as observations.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// OK builds a successful result carrying optional data.
func OK(data map[string]interface{}) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed result with a formatted reason.
func Fail(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Describe renders the result as a short line for history and prompts.
func (r Result) Describe() string {
	if r.Success {
		if len(r.Data) == 0 {
			return "ok"
		}
		return fmt.Sprintf("ok %v", r.Data)
	}
	return "failed: " + r.Error
}
