package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/netmount/sidecar"
)

func newOnceCmd(g *globals) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "once <name> [-- args...]",
		Short: "Run a sidecar to completion and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, _, err := g.supervisor(cmd, "", "")
			if err != nil {
				return err
			}
			defer func() { _ = sup.Shutdown() }()

			res, err := sup.RunOnce(cmd.Context(), args[0], args[1:], timeout)
			_, _ = io.WriteString(cmd.OutOrStdout(), res.Stdout)
			_, _ = io.WriteString(cmd.ErrOrStderr(), res.Stderr)
			if err != nil {
				return err
			}
			if res.Code != 0 {
				return &exitCodeError{code: res.Code}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", sidecar.DefaultRunTimeout, "Kill the sidecar after this long")
	return cmd
}
