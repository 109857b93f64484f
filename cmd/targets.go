package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidmaw/webclaw/internal/cdp"
	"github.com/voidmaw/webclaw/internal/observability"
)

// newTargetsCmd creates the `targets` command.
func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the debuggable pages the browser exposes",
		Long: `Queries the browser's remote debugging endpoint for its target list.
Useful to check that the browser was started with --remote-debugging-port
before running or teaching anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			browser := cdp.NewClient(appConfig.Browser, observability.GetLogger())

			targets, err := browser.Targets(cmd.Context())
			if err != nil {
				return fmt.Errorf("is the browser running with --remote-debugging-port=%d? %w",
					appConfig.Browser.Port, err)
			}

			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				fmt.Fprintln(out, "No targets.")
				return nil
			}
			for _, t := range targets {
				fmt.Fprintf(out, "%-10s %-40.40s %s\n", t.Type, t.Title, t.URL)
			}
			return nil
		},
	}
}
