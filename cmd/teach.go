package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidmaw/webclaw/internal/cdp"
	"github.com/voidmaw/webclaw/internal/knowledge"
	"github.com/voidmaw/webclaw/internal/learner"
	"github.com/voidmaw/webclaw/internal/observability"
	"github.com/voidmaw/webclaw/internal/tools"
)

// newTeachCmd creates and configures the `teach` command.
func newTeachCmd() *cobra.Command {
	var startURL string

	cmd := &cobra.Command{
		Use:   "teach <task> [site]",
		Short: "Teach a workflow interactively, one instruction per line",
		Long: `Opens an interactive session where you walk the browser through a task
step by step ('click Messages', 'type hello in Search', 'press Enter').
The recorded steps are stored as a workflow and replayed on later runs.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			task := args[0]
			site := ""
			if len(args) > 1 {
				site = args[1]
			} else {
				site = knowledge.SiteFromGoal(task)
			}
			if site == "" {
				return fmt.Errorf("could not infer a site from %q, pass it explicitly: teach %s <site>", task, task)
			}

			store, err := knowledge.Open(appConfig.Knowledge.Path, logger)
			if err != nil {
				return err
			}

			browser := cdp.NewClient(appConfig.Browser, logger)
			defer browser.Close()
			registry := tools.NewRegistry(browser, appConfig.Browser, logger)

			l := learner.New(browser, registry, store,
				cmd.InOrStdin(), cmd.OutOrStdout(), appConfig.Agent.SettleTime, logger)

			_, err = l.Teach(ctx, task, site, startURL)
			if errors.Is(err, learner.ErrCancelled) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled, nothing saved.")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&startURL, "url", "", "page to open before the first step")
	return cmd
}
