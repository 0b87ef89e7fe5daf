package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/damianoneill/nso/netconf/common"
	"github.com/damianoneill/nso/netconf/tailf"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// txnOptions are the flags shared by the txn subcommands.
type txnOptions struct {
	target      string
	file        string
	text        bool
	noLock      bool
	defaultOp   string
	testOption  string
	errorOption string
	noDeploy    bool
	reconcile   string
	label       string
	comment     string
	txID        bool
	format      string
	reverse     bool
}

func newTxnCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Apply configuration within an NSO transaction",
		Long: `Runs lock, start-transaction, edit-config, prepare-transaction,
commit-transaction or abort-transaction and unlock against a datastore.`,
	}
	cmd.AddCommand(
		newTxnApplyCommand(a),
		newTxnDryRunCommand(a),
	)
	return cmd
}

func newTxnApplyCommand(a *app) *cobra.Command {
	opts := &txnOptions{}
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply configuration and commit the transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTxn(cmd, a, opts, true)
		},
	}
	addTxnFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.txID, "with-transaction-id", false, "ask NSO for the id of the committed transaction")
	return cmd
}

func newTxnDryRunCommand(a *app) *cobra.Command {
	opts := &txnOptions{}
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Show the changes configuration would make, then abort the transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTxn(cmd, a, opts, false)
		},
	}
	addTxnFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.format, "outformat", string(tailf.FormatCLI), "dry-run output format (cli, xml, native)")
	cmd.Flags().BoolVar(&opts.reverse, "reverse", false, "show the changes that would undo the transaction")
	return cmd
}

func addTxnFlags(cmd *cobra.Command, opts *txnOptions) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.target, "target", "t", tailf.Running, "datastore (running, candidate)")
	flags.StringVarP(&opts.file, "file", "f", "", "configuration payload file, - for stdin")
	flags.BoolVar(&opts.text, "text", false, "payload is in NSO text format rather than XML")
	flags.BoolVar(&opts.noLock, "no-lock", false, "do not lock the datastore")
	flags.StringVar(&opts.defaultOp, "default-operation", "", "edit-config default operation (merge, replace, none)")
	flags.StringVar(&opts.testOption, "test-option", "", "edit-config test option (test-then-set, set, test-only)")
	flags.StringVar(&opts.errorOption, "error-option", "", "edit-config error option (stop-on-error, continue-on-error, rollback-on-error)")
	flags.BoolVar(&opts.noDeploy, "no-deploy", false, "do not deploy service changes to the network")
	flags.StringVar(&opts.reconcile, "reconcile", "", "service reconcile mode (keep-non-service-config, discard-non-service-config)")
	flags.StringVar(&opts.label, "label", "", "rollback label")
	flags.StringVar(&opts.comment, "comment", "", "rollback comment")
	_ = cmd.MarkFlagRequired("file")
}

func (o *txnOptions) editOptions(payload tailf.ConfigPayload) []tailf.Option {
	opts := []tailf.Option{
		tailf.Target(o.target),
		tailf.WithConfig(payload),
		tailf.WithParams(tailf.ExtensionParams{
			NoDeploy:        o.noDeploy,
			Reconcile:       tailf.Reconcile(o.reconcile),
			RollbackLabel:   o.label,
			RollbackComment: o.comment,
		}),
	}
	if o.defaultOp != "" {
		opts = append(opts, tailf.DefaultOperation(o.defaultOp))
	}
	if o.testOption != "" {
		opts = append(opts, tailf.TestOption(o.testOption))
	}
	if o.errorOption != "" {
		opts = append(opts, tailf.ErrorOption(o.errorOption))
	}
	return opts
}

func (o *txnOptions) prepareOptions(commit bool) []tailf.Option {
	var opts []tailf.Option
	if !commit {
		opts = append(opts, tailf.WithDryRun(tailf.DryRun{Format: tailf.OutputFormat(o.format), Reverse: o.reverse}))
	}
	return append(opts, tailf.WithParams(tailf.ExtensionParams{
		NoDeploy:  o.noDeploy,
		Reconcile: tailf.Reconcile(o.reconcile),
	}))
}

func runTxn(cmd *cobra.Command, a *app, o *txnOptions, commit bool) (err error) {
	payload, err := readPayload(o.file, o.text)
	if err != nil {
		return err
	}

	s, err := a.connect(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer s.Close()

	logger := log.WithFields(log.Fields{"session": s.ID(), "target": o.target})
	if !o.noLock {
		if err = s.Lock(o.target); err != nil {
			return errors.Wrap(err, "lock")
		}
		defer func() {
			if uerr := s.Unlock(o.target); uerr != nil && err == nil {
				err = errors.Wrap(uerr, "unlock")
			}
		}()
	}

	if _, err = s.StartTransaction(tailf.Target(o.target)); err != nil {
		return errors.Wrap(err, "start transaction")
	}
	// Any failure from here on leaves an open transaction to abort.
	defer func() {
		if err != nil && s.State() != tailf.StateCommitted && s.State() != tailf.StateAborted {
			if _, aerr := s.AbortTransaction(); aerr != nil {
				logger.WithError(aerr).Warn("Failed to abort transaction")
			}
		}
	}()

	if _, err = s.EditConfig(o.editOptions(payload)...); err != nil {
		return errors.Wrap(err, "edit config")
	}

	reply, err := s.PrepareTransaction(o.prepareOptions(commit)...)
	if err != nil {
		return errors.Wrap(err, "prepare transaction")
	}

	if !commit {
		if err = printDryRun(cmd.OutOrStdout(), reply); err != nil {
			return err
		}
		if _, err = s.AbortTransaction(); err != nil {
			return errors.Wrap(err, "abort transaction")
		}
		logger.Info("Dry-run complete")
		return nil
	}

	var commitOpts []tailf.Option
	if o.txID {
		commitOpts = append(commitOpts, tailf.WithTransactionID())
	}
	reply, err = s.CommitTransaction(commitOpts...)
	if err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	if id, ok := tailf.TransactionID(reply); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "transaction %s committed\n", id)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "committed")
	}
	logger.Info("Transaction committed")
	return nil
}

// printDryRun writes the changes reported by a dry-run, one section per node.
func printDryRun(w io.Writer, reply *common.RPCReply) error {
	result, err := tailf.ParseDryRunResult(reply)
	if err != nil {
		return err
	}
	out := result.Output()
	if out == nil {
		fmt.Fprintln(w, "no changes")
		return nil
	}
	if out.LocalNode != nil {
		printChanges(w, "local-node", out.LocalNode.Data)
	}
	for _, dev := range out.Devices {
		printChanges(w, dev.Name, dev.Data)
	}
	return nil
}

func printChanges(w io.Writer, node string, data tailf.DryRunData) {
	changes := strings.TrimSpace(data.Text)
	if changes == "" {
		changes = strings.TrimSpace(data.Content)
	}
	fmt.Fprintf(w, "%s:\n%s\n", node, changes)
}
