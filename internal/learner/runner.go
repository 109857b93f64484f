package learner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voidmaw/webclaw/internal/knowledge"
)

// Report summarizes one workflow replay.
type Report struct {
	Site      string
	Task      string
	Total     int
	Completed int
	Success   bool
	Error     string
}

// Runner replays stored workflows without consulting the oracle. One failed
// step ends the replay; the outcome feeds back into workflow confidence.
type Runner struct {
	browser  Browser
	executor Executor
	store    *knowledge.Store
	settle   time.Duration
	logger   *zap.Logger
}

// NewRunner wires a runner. settle is the pause between replayed steps.
func NewRunner(browser Browser, executor Executor, store *knowledge.Store,
	settle time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		browser:  browser,
		executor: executor,
		store:    store,
		settle:   settle,
		logger:   logger.Named("runner"),
	}
}

// Run replays the stored workflow for (site, task), substituting ${name}
// placeholders in step fields from params.
func (r *Runner) Run(ctx context.Context, site, task string, params map[string]string) (Report, error) {
	wf, ok := r.store.Workflow(site, task)
	if !ok {
		return Report{}, fmt.Errorf("no workflow for %q on %s", task, site)
	}

	report := Report{Site: site, Task: task, Total: len(wf.Steps)}

	if !r.browser.Connected() {
		if err := r.browser.Connect(ctx, site); err != nil {
			return report, fmt.Errorf("connecting to browser: %w", err)
		}
	}

	r.logger.Info("replaying workflow",
		zap.String("site", site),
		zap.String("task", task),
		zap.Int("steps", len(wf.Steps)),
		zap.Float64("confidence", wf.Confidence))

	for i, step := range wf.Steps {
		step = substitute(step, params)
		name, toolParams := toolCall(step)

		r.logger.Info("step",
			zap.Int("n", i+1),
			zap.String("action", knowledge.DescribeStep(step)))

		result := r.executor.Execute(ctx, name, toolParams)
		if !result.Success {
			report.Completed = i
			report.Error = fmt.Sprintf("step %d (%s): %s", i+1, step.Action, result.Error)
			r.store.RecordWorkflowFailure(site, task)
			r.save()
			return report, nil
		}
		report.Completed = i + 1

		if err := r.pause(ctx); err != nil {
			return report, err
		}
	}

	report.Success = true
	if err := r.store.RecordSuccess(site, task, wf.Steps); err != nil {
		r.logger.Warn("recording success", zap.Error(err))
	}
	r.save()
	return report, nil
}

func (r *Runner) save() {
	if err := r.store.Save(); err != nil {
		r.logger.Warn("saving knowledge", zap.Error(err))
	}
}

func (r *Runner) pause(ctx context.Context) error {
	if r.settle <= 0 {
		return nil
	}
	timer := time.NewTimer(r.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// substitute expands ${name} and $name placeholders in every string field.
func substitute(step knowledge.Step, params map[string]string) knowledge.Step {
	if len(params) == 0 {
		return step
	}
	expand := func(s string) string {
		for name, value := range params {
			s = strings.ReplaceAll(s, "${"+name+"}", value)
			s = strings.ReplaceAll(s, "$"+name, value)
		}
		return s
	}
	step.Target = expand(step.Target)
	step.Text = expand(step.Text)
	step.Field = expand(step.Field)
	step.URL = expand(step.URL)
	step.Key = expand(step.Key)
	return step
}
