package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/slotchat/internal/version"
)

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the slotchat build",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			b := version.Current()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), b.Version)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), b)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	return cmd
}
