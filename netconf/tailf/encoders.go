package tailf

import (
	"fmt"

	"github.com/beevik/etree"
)

// The option encoders append NSO parameter elements to a request under
// construction. Each appends only for a present value and validates before
// modifying node. The caller decides the order in which they are applied.

// EncodeServiceCommitParams appends no-deploy when noDeploy is set, and a reconcile element naming the mode
// when reconcile is not ReconcileNone.
func EncodeServiceCommitParams(node *etree.Element, noDeploy bool, reconcile Reconcile) error {
	if !reconcile.Valid() {
		return invalidArgument(nil, "unknown reconcile mode %q", reconcile)
	}
	if noDeploy {
		subElement(node, "no-deploy", NSNCS)
	}
	if reconcile != ReconcileNone {
		rec := subElement(node, "reconcile", NSNCS)
		subElement(rec, string(reconcile), NSNCS)
	}
	return nil
}

// EncodeRollbackMetadata appends a label and/or a comment to be recorded with the rollback file.
func EncodeRollbackMetadata(node *etree.Element, label, comment string) {
	if label != "" {
		textElement(node, "label", NSRollback, label)
	}
	if comment != "" {
		textElement(node, "comment", NSRollback, comment)
	}
}

// EncodeWithTransactionID appends with-transaction-id when enabled.
func EncodeWithTransactionID(node *etree.Element, enabled bool) {
	if enabled {
		subElement(node, "with-transaction-id", NSWithTransactionID)
	}
}

// EncodeWithInactive appends with-inactive when enabled.
func EncodeWithInactive(node *etree.Element, enabled bool) {
	if enabled {
		subElement(node, "with-inactive", NSInactive)
	}
}

// EncodeDryRun appends a dry-run element when dr is not nil.
func EncodeDryRun(node *etree.Element, dr *DryRun) error {
	if dr == nil {
		return nil
	}
	if err := validateDryRun(nil, dr); err != nil {
		return err
	}
	el := subElement(node, "dry-run", NSNCS)
	textElement(el, "outformat", NSNCS, string(dr.Format))
	if dr.Reverse {
		subElement(el, "reverse", NSNCS)
	}
	return nil
}

func validateDryRun(op fmt.Stringer, dr *DryRun) error {
	if dr.Format == "" {
		if dr.Reverse {
			return invalidArgument(op, "dry-run reverse requires an output format")
		}
		return invalidArgument(op, "dry-run requires an output format")
	}
	if !dr.Format.Valid() {
		return invalidArgument(op, "unknown dry-run output format %q", dr.Format)
	}
	return nil
}
