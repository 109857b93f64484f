// Package learner teaches workflows interactively. Instead of letting the
// decision oracle guess at an unfamiliar task, the user walks the browser
// through it once, step by step, and the recorded steps become a stored
// workflow that later runs replay directly.
package learner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voidmaw/webclaw/internal/knowledge"
	"github.com/voidmaw/webclaw/internal/tools"
)

// ErrCancelled is returned when the user aborts a teaching session.
var ErrCancelled = errors.New("learner: teaching cancelled")

// Browser is the page surface the learner senses through.
type Browser interface {
	Connect(ctx context.Context, domainHint string) error
	Connected() bool
	Refresh(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	URL() string
	Title() string
}

// Executor runs named tools against the page.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]interface{}) tools.Result
}

// Learner runs guided teaching sessions. Input and output are injected so
// tests can script a session; the CLI wires stdin and stdout.
type Learner struct {
	browser  Browser
	executor Executor
	store    *knowledge.Store
	in       *bufio.Scanner
	out      io.Writer
	logger   *zap.Logger

	settle        time.Duration
	screenshotDir string
}

// New wires a learner. settle is the pause after each executed step.
func New(browser Browser, executor Executor, store *knowledge.Store,
	in io.Reader, out io.Writer, settle time.Duration, logger *zap.Logger) *Learner {
	return &Learner{
		browser:       browser,
		executor:      executor,
		store:         store,
		in:            bufio.NewScanner(in),
		out:           out,
		logger:        logger.Named("learner"),
		settle:        settle,
		screenshotDir: os.TempDir(),
	}
}

// Teach runs one interactive session for (site, task) and stores the result
// as a workflow. The user types one instruction per line; "done" finishes,
// "cancel" aborts, "undo" removes the last recorded step.
func (l *Learner) Teach(ctx context.Context, task, site, startURL string) (knowledge.Workflow, error) {
	if task == "" {
		return knowledge.Workflow{}, fmt.Errorf("learner: task name is required")
	}

	fmt.Fprintf(l.out, "Teaching %q on %s.\n", task, site)
	fmt.Fprintln(l.out, "One instruction per line, e.g. 'click Messages', 'type hello in Search', 'press Enter'.")
	fmt.Fprintln(l.out, "Type 'done' when finished, 'undo' to drop the last step, 'cancel' to abort.")

	if !l.browser.Connected() {
		if err := l.browser.Connect(ctx, site); err != nil {
			return knowledge.Workflow{}, fmt.Errorf("connecting to browser: %w", err)
		}
	}

	var steps []knowledge.Step

	if startURL != "" {
		step := knowledge.Step{Action: "navigate", URL: startURL, Note: "starting point"}
		if result := l.execute(ctx, step); !result.Success {
			return knowledge.Workflow{}, fmt.Errorf("opening start page: %s", result.Error)
		}
		steps = append(steps, step)
		l.pause(ctx)
	}

	for stepNum := len(steps) + 1; ; {
		l.sense(ctx, stepNum)

		fmt.Fprint(l.out, "> ")
		line, ok := l.readLine()
		if !ok {
			return knowledge.Workflow{}, ErrCancelled
		}
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "done":
			if len(steps) == 0 {
				fmt.Fprintln(l.out, "Nothing recorded yet.")
				continue
			}
			return l.finish(site, task, steps)
		case "cancel":
			return knowledge.Workflow{}, ErrCancelled
		case "undo", "back":
			if len(steps) > 0 {
				steps = steps[:len(steps)-1]
				stepNum--
				fmt.Fprintln(l.out, "Removed last step.")
			}
			continue
		}

		step, parsed := ParseInstruction(line)
		if !parsed {
			fmt.Fprintln(l.out, "Did not understand that. Examples: 'click Send', 'type hello', 'press Enter', 'wait 2 seconds'.")
			continue
		}

		result := l.execute(ctx, step)
		if !result.Success {
			fmt.Fprintf(l.out, "Step failed: %s. Try again or type 'cancel'.\n", result.Error)
			continue
		}

		steps = append(steps, step)
		stepNum++
		fmt.Fprintf(l.out, "Recorded: %s\n", knowledge.DescribeStep(step))
		l.pause(ctx)
	}
}

func (l *Learner) finish(site, task string, steps []knowledge.Step) (knowledge.Workflow, error) {
	fmt.Fprintln(l.out, "How do I know this task succeeded? (text that appears on success, or empty to skip)")
	fmt.Fprint(l.out, "> ")
	indicator, _ := l.readLine()

	wf := knowledge.Workflow{
		Steps:            steps,
		LearnedFrom:      "guided",
		SuccessIndicator: indicator,
	}
	if err := l.store.PutWorkflow(site, task, wf); err != nil {
		return knowledge.Workflow{}, err
	}
	if err := l.store.Flush(); err != nil {
		l.logger.Warn("saving knowledge", zap.Error(err))
	}

	fmt.Fprintf(l.out, "Learned %q on %s with %d steps.\n", task, site, len(steps))
	return wf, nil
}

// sense shows the user where the browser is and drops a screenshot in the
// temp dir so they can look at the page the next instruction applies to.
func (l *Learner) sense(ctx context.Context, stepNum int) {
	if err := l.browser.Refresh(ctx); err != nil {
		l.logger.Debug("refreshing page state", zap.Error(err))
	}
	fmt.Fprintf(l.out, "\nStep %d. Page: %s (%s)\n", stepNum, l.browser.Title(), l.browser.URL())

	png, err := l.browser.Screenshot(ctx)
	if err != nil {
		l.logger.Debug("capturing screenshot", zap.Error(err))
		return
	}
	path := filepath.Join(l.screenshotDir, fmt.Sprintf("webclaw_teach_step_%d.png", stepNum))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		l.logger.Debug("writing screenshot", zap.Error(err))
		return
	}
	fmt.Fprintf(l.out, "Screenshot: %s\n", path)
}

func (l *Learner) execute(ctx context.Context, step knowledge.Step) tools.Result {
	name, params := toolCall(step)
	return l.executor.Execute(ctx, name, params)
}

func (l *Learner) readLine() (string, bool) {
	if !l.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(l.in.Text()), true
}

func (l *Learner) pause(ctx context.Context) {
	if l.settle <= 0 {
		return
	}
	timer := time.NewTimer(l.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
