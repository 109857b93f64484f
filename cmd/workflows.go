package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voidmaw/webclaw/internal/cdp"
	"github.com/voidmaw/webclaw/internal/knowledge"
	"github.com/voidmaw/webclaw/internal/learner"
	"github.com/voidmaw/webclaw/internal/observability"
	"github.com/voidmaw/webclaw/internal/tools"
)

// newWorkflowsCmd creates the `workflows` command and its subcommands.
func newWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Inspect and replay learned workflows",
	}
	cmd.AddCommand(newWorkflowsListCmd())
	cmd.AddCommand(newWorkflowsShowCmd())
	cmd.AddCommand(newWorkflowsExecCmd())
	cmd.AddCommand(newWorkflowsHintCmd())
	return cmd
}

func newWorkflowsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List everything the knowledge store has learned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := knowledge.Open(appConfig.Knowledge.Path, observability.GetLogger())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.Summary())
			return nil
		},
	}
}

func newWorkflowsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <site> <task>",
		Short: "Show the stored steps for one workflow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := knowledge.Open(appConfig.Knowledge.Path, observability.GetLogger())
			if err != nil {
				return err
			}

			wf, ok := store.Workflow(args[0], args[1])
			if !ok {
				return fmt.Errorf("no workflow for %q on %s", args[1], args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s on %s (confidence %.0f%%, learned from %s)\n",
				args[1], args[0], wf.Confidence*100, wf.LearnedFrom)
			for i, step := range wf.Steps {
				fmt.Fprintf(out, "  %d. %s\n", i+1, knowledge.DescribeStep(step))
			}
			if wf.SuccessIndicator != "" {
				fmt.Fprintf(out, "  Success looks like: %s\n", wf.SuccessIndicator)
			}
			return nil
		},
	}
}

func newWorkflowsExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <site> <task> [key=value...]",
		Short: "Replay a learned workflow, substituting ${key} placeholders",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			params, err := parseParams(args[2:])
			if err != nil {
				return err
			}

			store, err := knowledge.Open(appConfig.Knowledge.Path, logger)
			if err != nil {
				return err
			}

			browser := cdp.NewClient(appConfig.Browser, logger)
			defer browser.Close()
			registry := tools.NewRegistry(browser, appConfig.Browser, logger)

			runner := learner.NewRunner(browser, registry, store, appConfig.Agent.SettleTime, logger)
			report, err := runner.Run(cmd.Context(), args[0], args[1], params)
			if err != nil {
				return err
			}

			if !report.Success {
				return fmt.Errorf("replay failed at %s (%d/%d steps completed)",
					report.Error, report.Completed, report.Total)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replayed %q on %s, %d steps.\n",
				args[1], args[0], report.Completed)
			return nil
		},
	}
}

func newWorkflowsHintCmd() *cobra.Command {
	var task string

	cmd := &cobra.Command{
		Use:   "hint <site> <instruction...>",
		Short: "Record a free-text instruction the oracle should see for a site",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := knowledge.Open(appConfig.Knowledge.Path, observability.GetLogger())
			if err != nil {
				return err
			}

			store.AddUserHint(args[0], task, strings.Join(args[1:], " "))
			if err := store.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved hint for %s.\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "limit the hint to one task")
	return cmd
}

// parseParams turns trailing key=value arguments into a substitution map.
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		params[key] = value
	}
	return params, nil
}
