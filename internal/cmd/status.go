package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <cert>",
		Short: "Report whether a certificate is installed.",
		Long:  `Prints "installed" or "not installed". Both exit with status 0.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storeFor(cmd)
			if err != nil {
				return err
			}
			in, err := certificateArg(cmd, args[0])
			if err != nil {
				return err
			}
			installed, err := store.IsInstalled(cmd.Context(), in)
			if err != nil {
				return err
			}
			if installed {
				fmt.Fprintln(cmd.OutOrStdout(), "installed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not installed")
			}
			return nil
		},
	}
	addSerialFlag(cmd)
	return cmd
}
