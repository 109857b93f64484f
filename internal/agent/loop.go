package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voidmaw/webclaw/internal/config"
	"github.com/voidmaw/webclaw/internal/knowledge"
	"github.com/voidmaw/webclaw/internal/llmclient"
	"github.com/voidmaw/webclaw/internal/tools"
)

const loopWarningText = `LOOP DETECTED. You have repeated the same failing action several times.
The current approach is NOT WORKING. Try something different:
- If pressing Enter did not work, try clicking instead
- If clicking by text failed, try a different element
- If nothing works, give up with an explanation

Do NOT repeat the same action.`

// Executor runs named tools against the page.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]interface{}) tools.Result
	Catalogue() string
}

// Browser is the page surface the loop senses through.
type Browser interface {
	Connect(ctx context.Context, domainHint string) error
	Connected() bool
	Refresh(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	PageText(ctx context.Context, limit int) (string, error)
	URL() string
	Title() string
}

// Loop is the sense, think, act cycle with knowledge woven through it. The
// store is consulted before the first step and updated on every terminal
// state so that later runs of the same task start from a known workflow.
type Loop struct {
	browser  Browser
	executor Executor
	oracle   llmclient.Client
	store    *knowledge.Store
	detector *LoopDetector
	cfg      config.AgentConfig
	pageText int
	logger   *zap.Logger
}

// NewLoop wires a loop from its collaborators.
func NewLoop(browser Browser, executor Executor, oracle llmclient.Client,
	store *knowledge.Store, agentCfg config.AgentConfig, browserCfg config.BrowserConfig,
	logger *zap.Logger) *Loop {
	return &Loop{
		browser:  browser,
		executor: executor,
		oracle:   oracle,
		store:    store,
		detector: NewLoopDetector(agentCfg.LoopThreshold),
		cfg:      agentCfg,
		pageText: browserCfg.PageTextLimit,
		logger:   logger.Named("agent"),
	}
}

// Run drives one goal to a terminal state. It returns an error only for
// infrastructure failures (browser unreachable, oracle transport dead); an
// oracle that gives up or runs out of steps is a normal RunResult.
func (l *Loop) Run(ctx context.Context, goal string) (RunResult, error) {
	result := RunResult{
		RunID: uuid.NewString(),
		Goal:  goal,
		State: StateRunning,
	}
	l.detector.Reset()

	result.Site = knowledge.SiteFromGoal(goal)
	result.Task = knowledge.TaskFromGoal(goal)
	learnable := result.Site != "" && result.Task != "" && result.Task != "unknown"

	l.logger.Info("run starting",
		zap.String("run_id", result.RunID),
		zap.String("goal", goal),
		zap.String("site", result.Site),
		zap.String("task", result.Task),
		zap.Bool("learnable", learnable))

	if learnable {
		if wf, ok := l.store.Workflow(result.Site, result.Task); ok {
			l.logger.Info("known workflow found",
				zap.String("task", result.Task),
				zap.Float64("confidence", wf.Confidence),
				zap.Int("steps", len(wf.Steps)))
		}
		if failures := l.store.FailuresFor(result.Site, result.Task); len(failures) > 0 {
			l.logger.Info("avoiding known failures", zap.Int("count", len(failures)))
		}
	}

	if !l.browser.Connected() {
		if err := l.browser.Connect(ctx, result.Site); err != nil {
			return result, fmt.Errorf("connecting to browser: %w", err)
		}
	}

	var history []historyEntry

	for step := 1; step <= l.cfg.MaxSteps; step++ {
		l.logger.Info("sense", zap.Int("step", step), zap.Int("max_steps", l.cfg.MaxSteps))

		screenshot, pageText := l.sense(ctx)

		warning := ""
		if l.detector.Looping() {
			l.logger.Warn("loop detected", zap.String("pattern", l.detector.Describe()))
			if learnable {
				if failed, ok := l.detector.LastFailure(); ok {
					l.store.RecordFailure(result.Site, result.Task, failed,
						"repeated failure in loop", "")
				}
			}
			warning = loopWarningText
		}

		decision, err := l.think(ctx, goal, screenshot, pageText, warning, history, result)
		if err != nil {
			if parseErr, ok := err.(*oracleParseError); ok {
				l.logger.Warn("unparseable oracle response", zap.Error(parseErr.cause))
				result.State = StateGivenUp
				result.Summary = "Could not parse response"
				result.Steps = len(history)
				l.recordFailureOutcome(learnable, result)
				return result, nil
			}
			return result, err
		}

		if decision.Done {
			l.logger.Info("goal achieved", zap.String("summary", decision.Summary))
			result.State = StateDone
			result.Summary = decision.Summary
			result.Steps = len(history)
			if learnable {
				steps := successfulSteps(history)
				if err := l.store.RecordSuccess(result.Site, result.Task, steps); err != nil {
					l.logger.Warn("recording success", zap.Error(err))
				}
				l.save()
			}
			return result, nil
		}

		if decision.GiveUp {
			reason := decision.Reason
			if reason == "" {
				reason = "Cannot complete"
			}
			l.logger.Warn("oracle gave up", zap.String("reason", reason))
			result.State = StateGivenUp
			result.Summary = reason
			result.Steps = len(history)
			l.recordFailureOutcome(learnable, result)
			return result, nil
		}

		l.logger.Info("act",
			zap.String("tool", decision.Tool),
			zap.String("reason", decision.Reason))

		execResult := l.executor.Execute(ctx, decision.Tool, decision.Params)
		history = append(history, historyEntry{
			Step:   step,
			Tool:   decision.Tool,
			Params: decision.Params,
			Reason: decision.Reason,
			Result: execResult,
		})
		l.detector.Record(decision.Tool, decision.Params, execResult.Success)

		if execResult.Success {
			l.logger.Info("action succeeded", zap.String("tool", decision.Tool))
		} else {
			l.logger.Warn("action failed",
				zap.String("tool", decision.Tool),
				zap.String("error", execResult.Error))
		}

		if err := l.settle(ctx); err != nil {
			return result, err
		}
	}

	l.logger.Warn("step budget exhausted", zap.Int("max_steps", l.cfg.MaxSteps))
	result.State = StateExhausted
	result.Summary = fmt.Sprintf("max steps (%d) reached", l.cfg.MaxSteps)
	result.Steps = len(history)
	l.recordFailureOutcome(learnable, result)
	return result, nil
}

// sense captures the current page. Sensing is best effort: a failed
// screenshot or text read degrades the prompt, it does not end the run.
func (l *Loop) sense(ctx context.Context) ([]byte, string) {
	if err := l.browser.Refresh(ctx); err != nil {
		l.logger.Debug("refreshing page state", zap.Error(err))
	}
	screenshot, err := l.browser.Screenshot(ctx)
	if err != nil {
		l.logger.Warn("capturing screenshot", zap.Error(err))
		screenshot = nil
	}
	pageText, err := l.browser.PageText(ctx, l.pageText)
	if err != nil {
		l.logger.Warn("reading page text", zap.Error(err))
		pageText = ""
	}
	return screenshot, pageText
}

// oracleParseError wraps a malformed oracle response. It is terminal for the
// run but not an infrastructure error.
type oracleParseError struct {
	cause error
}

func (e *oracleParseError) Error() string {
	return fmt.Sprintf("parsing oracle decision: %v", e.cause)
}

func (e *oracleParseError) Unwrap() error { return e.cause }

func (l *Loop) think(ctx context.Context, goal string, screenshot []byte, pageText,
	warning string, history []historyEntry, result RunResult) (Decision, error) {

	knowledgeBlock := ""
	if result.Site != "" {
		knowledgeBlock = l.store.ForOracle(result.Site, result.Task)
	}

	prompt := buildUserPrompt(promptInput{
		Goal:        goal,
		URL:         l.browser.URL(),
		Title:       l.browser.Title(),
		PageText:    pageText,
		Knowledge:   knowledgeBlock,
		LoopWarning: warning,
		History:     history,
		Catalogue:   l.executor.Catalogue(),
	})

	raw, err := l.oracle.GenerateDecision(ctx, llmclient.Request{
		SystemPrompt:  systemPrompt,
		UserPrompt:    prompt,
		ScreenshotPNG: screenshot,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("querying oracle: %w", err)
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		return Decision{}, &oracleParseError{cause: err}
	}
	return decision, nil
}

// recordFailureOutcome lowers workflow confidence after a failed run and
// persists the store. Persistence errors are logged, never fatal.
func (l *Loop) recordFailureOutcome(learnable bool, result RunResult) {
	if !learnable {
		return
	}
	l.store.RecordWorkflowFailure(result.Site, result.Task)
	l.save()
}

func (l *Loop) save() {
	if err := l.store.Save(); err != nil {
		l.logger.Warn("saving knowledge", zap.Error(err))
	}
}

// settle gives the page a moment to react to the last action.
func (l *Loop) settle(ctx context.Context) error {
	if l.cfg.SettleTime <= 0 {
		return nil
	}
	timer := time.NewTimer(l.cfg.SettleTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// successfulSteps converts the actions that worked into reusable workflow
// steps.
func successfulSteps(history []historyEntry) []knowledge.Step {
	steps := make([]knowledge.Step, 0, len(history))
	for _, h := range history {
		if !h.Result.Success {
			continue
		}
		steps = append(steps, stepFromAction(h.Tool, h.Params))
	}
	return steps
}

// stepFromAction maps one executed tool call onto a knowledge step.
func stepFromAction(tool string, params map[string]interface{}) knowledge.Step {
	str := func(key string) string {
		if v, ok := params[key].(string); ok {
			return v
		}
		return ""
	}
	num := func(key string) int {
		switch v := params[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
		return 0
	}

	switch tool {
	case "navigate":
		return knowledge.Step{Action: "navigate", URL: str("url")}
	case "click":
		return knowledge.Step{Action: "click", Target: str("target")}
	case "click_nth":
		return knowledge.Step{
			Action: "click",
			Target: str("target"),
			Note:   fmt.Sprintf("match index %d", num("index")),
		}
	case "type":
		return knowledge.Step{Action: "type", Text: str("text"), Field: str("field")}
	case "press":
		return knowledge.Step{Action: "press", Key: str("key")}
	case "wait":
		step := knowledge.Step{Action: "wait", Seconds: num("seconds")}
		if text := str("text"); text != "" {
			step.Note = fmt.Sprintf("until %q appears", text)
		}
		return step
	case "scroll":
		return knowledge.Step{
			Action:    "scroll",
			Direction: str("direction"),
			Amount:    num("amount"),
		}
	case "scroll_until_found":
		return knowledge.Step{
			Action:    "scroll",
			Direction: "down",
			Note:      fmt.Sprintf("until %q appears", str("text")),
		}
	default:
		return knowledge.Step{Action: tool}
	}
}
