package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netmount/sidecar"
)

func newLogsCmd(g *globals) *cobra.Command {
	var maxBytes int
	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Print the tail of a sidecar's log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, _, err := g.supervisor(cmd, "", "")
			if err != nil {
				return err
			}
			defer func() { _ = sup.Shutdown() }()

			tail, err := sup.LogTail(args[0], maxBytes)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tail)
			return err
		},
	}
	cmd.Flags().IntVar(&maxBytes, "bytes", sidecar.DefaultLogTailBytes, "Maximum number of bytes to print")
	return cmd
}
