package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <cert>",
		Short: "Install a certificate as a trusted root.",
		Long: `Install a certificate into the trust store.
<cert> is a path to a PEM or DER file, inline PEM text, or "-" to read stdin.
Inline PEM starts with dashes, so pass it after "--":

  certstore install -- "$(cat ca.crt)"`,
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
			if err := store.Install(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", describe(args[0]))
			return nil
		},
	}
	addSerialFlag(cmd)
	return cmd
}
