package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <cert>",
		Aliases: []string{"uninstall"},
		Short:   "Remove a certificate from the trust store.",
		Long: `Remove a certificate from the trust store. Deleting a certificate that is
not installed succeeds without changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storeFor(cmd)
			if err != nil {
				return err
			}
			in, err := certificateArg(cmd, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", describe(args[0]))
			return nil
		},
	}
	addSerialFlag(cmd)
	return cmd
}
