package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voidmaw/webclaw/internal/agent"
	"github.com/voidmaw/webclaw/internal/cdp"
	"github.com/voidmaw/webclaw/internal/knowledge"
	"github.com/voidmaw/webclaw/internal/llmclient"
	"github.com/voidmaw/webclaw/internal/observability"
	"github.com/voidmaw/webclaw/internal/tools"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <goal...>",
		Short: "Pursue a goal autonomously, using and updating learned knowledge",
		Long: `Runs the sense, think, act loop against the locally debuggable browser.
Known workflows and known failures for the inferred site and task are fed to
the decision oracle, and the outcome is recorded back into the knowledge
store.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			goal := strings.Join(args, " ")

			oracle, err := llmclient.New(appConfig.Oracle, logger)
			if err != nil {
				return err
			}

			store, err := knowledge.Open(appConfig.Knowledge.Path, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Save(); err != nil {
					logger.Warn("saving knowledge", zap.Error(err))
				}
			}()

			browser := cdp.NewClient(appConfig.Browser, logger)
			defer browser.Close()

			registry := tools.NewRegistry(browser, appConfig.Browser, logger)
			loop := agent.NewLoop(browser, registry, oracle, store,
				appConfig.Agent, appConfig.Browser, logger)

			result, err := loop.Run(ctx, goal)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch result.State {
			case agent.StateDone:
				fmt.Fprintf(out, "Done in %d steps: %s\n", result.Steps, result.Summary)
				return nil
			case agent.StateGivenUp:
				fmt.Fprintf(out, "Gave up after %d steps: %s\n", result.Steps, result.Summary)
			case agent.StateExhausted:
				fmt.Fprintf(out, "Ran out of steps: %s\n", result.Summary)
			}
			return fmt.Errorf("goal not reached")
		},
	}
}
