package main

import (
	"fmt"

	"github.com/damianoneill/nso/netconf/tailf"

	"github.com/spf13/cobra"
)

func newOperationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the NSO operations nsoctl can issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range tailf.DefaultRegistry().Names() {
				op, _ := tailf.ParseOpKind(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", name, op.Namespace())
			}
			return nil
		},
	}
}
