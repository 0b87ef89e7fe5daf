package main

import (
	"fmt"

	"github.com/damianoneill/nso/netconf/tailf"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type commitOptions struct {
	confirmed      bool
	confirmTimeout int
	persist        string
	persistID      string
	noDeploy       bool
	label          string
	comment        string
	txID           bool
}

func (o *commitOptions) options(cmd *cobra.Command) []tailf.Option {
	opts := []tailf.Option{tailf.WithParams(tailf.ExtensionParams{
		NoDeploy:          o.noDeploy,
		RollbackLabel:     o.label,
		RollbackComment:   o.comment,
		WithTransactionID: o.txID,
	})}
	if o.confirmed {
		opts = append(opts, tailf.Confirmed())
	}
	if cmd.Flags().Changed("confirm-timeout") {
		opts = append(opts, tailf.ConfirmTimeout(o.confirmTimeout))
	}
	if cmd.Flags().Changed("persist") {
		opts = append(opts, tailf.Persist(o.persist))
	}
	if cmd.Flags().Changed("persist-id") {
		opts = append(opts, tailf.PersistID(o.persistID))
	}
	return opts
}

func newCommitCommand(a *app) *cobra.Command {
	o := &commitOptions{}
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the candidate datastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := o.options(cmd)
			// Report invalid combinations without connecting.
			if _, err := tailf.BuildCommit(nil, opts...); errors.Is(err, tailf.ErrInvalidArgument) {
				return err
			}

			s, err := a.connect(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "connect")
			}
			defer s.Close()

			reply, err := s.Commit(opts...)
			if err != nil {
				return errors.Wrap(err, "commit")
			}
			if id, ok := tailf.TransactionID(reply); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "transaction %s committed\n", id)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "committed")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&o.confirmed, "confirmed", false, "revert the commit unless confirmed")
	flags.IntVar(&o.confirmTimeout, "confirm-timeout", 600, "seconds before an unconfirmed commit is reverted")
	flags.StringVar(&o.persist, "persist", "", "keep the confirmed commit pending after the session ends, under this token")
	flags.StringVar(&o.persistID, "persist-id", "", "confirm the pending commit identified by this token")
	flags.BoolVar(&o.noDeploy, "no-deploy", false, "do not deploy service changes to the network")
	flags.StringVar(&o.label, "label", "", "rollback label")
	flags.StringVar(&o.comment, "comment", "", "rollback comment")
	flags.BoolVar(&o.txID, "with-transaction-id", false, "ask NSO for the id of the committed transaction")
	return cmd
}
