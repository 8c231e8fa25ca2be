package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Print the executable a sidecar name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, _, err := g.supervisor(cmd, "", "")
			if err != nil {
				return err
			}
			defer func() { _ = sup.Shutdown() }()

			path, err := sup.Resolve(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
