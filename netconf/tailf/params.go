package tailf

// OpKind identifies an NSO-aware operation.
type OpKind int

// The operations implemented by this package. The first four are added by NSO,
// the remainder are standard operations that NSO extends.
const (
	OpStartTransaction OpKind = iota
	OpPrepareTransaction
	OpCommitTransaction
	OpAbortTransaction
	OpEditConfig
	OpCopyConfig
	OpCommit
)

var opNames = [...]string{
	OpStartTransaction:   "start-transaction",
	OpPrepareTransaction: "prepare-transaction",
	OpCommitTransaction:  "commit-transaction",
	OpAbortTransaction:   "abort-transaction",
	OpEditConfig:         "edit-config",
	OpCopyConfig:         "copy-config",
	OpCommit:             "commit",
}

// OpKinds lists every operation kind.
func OpKinds() []OpKind {
	return []OpKind{
		OpStartTransaction, OpPrepareTransaction, OpCommitTransaction, OpAbortTransaction,
		OpEditConfig, OpCopyConfig, OpCommit,
	}
}

// String returns the element name of the operation.
func (k OpKind) String() string {
	if k < 0 || int(k) >= len(opNames) {
		return "unknown"
	}
	return opNames[k]
}

// Namespace returns the namespace of the operation element.
func (k OpKind) Namespace() string {
	switch k {
	case OpStartTransaction, OpPrepareTransaction, OpCommitTransaction, OpAbortTransaction:
		return NSTransactions
	default:
		return NSBase
	}
}

// ParseOpKind returns the operation kind with the given element name.
func ParseOpKind(name string) (OpKind, bool) {
	for _, k := range OpKinds() {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// DefaultWithInactive reports whether inactive configuration is included when an operation is built
// without an explicit WithInactive option. Only start-transaction, edit-config and copy-config accept
// the parameter, and NSO includes inactive nodes by default for all three.
func DefaultWithInactive(op OpKind) bool {
	switch op {
	case OpStartTransaction, OpEditConfig, OpCopyConfig:
		return true
	default:
		return false
	}
}

// Reconcile defines how NSO treats configuration not owned by a service when the service is re-deployed.
type Reconcile string

// Reconcile modes. ReconcileNone omits the reconcile element.
const (
	ReconcileNone                    Reconcile = ""
	ReconcileKeepNonServiceConfig    Reconcile = "keep-non-service-config"
	ReconcileDiscardNonServiceConfig Reconcile = "discard-non-service-config"
)

// Valid reports whether r is one of the defined modes.
func (r Reconcile) Valid() bool {
	switch r {
	case ReconcileNone, ReconcileKeepNonServiceConfig, ReconcileDiscardNonServiceConfig:
		return true
	}
	return false
}

// OutputFormat defines how a dry-run renders the pending changes.
type OutputFormat string

// Dry-run output formats.
const (
	FormatNative OutputFormat = "native"
	FormatCLI    OutputFormat = "cli"
	FormatXML    OutputFormat = "xml"
)

// Valid reports whether f is one of the defined formats.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatNative, FormatCLI, FormatXML:
		return true
	}
	return false
}

// DryRun requests that prepare-transaction reports the changes instead of applying them.
// Reverse asks for the changes that would undo the transaction, and needs a Format.
type DryRun struct {
	Format  OutputFormat
	Reverse bool
}

// ExtensionParams bundles the NSO parameters shared by several operations.
// A zero value adds nothing, except that WithInactive left nil takes the
// operation default (see DefaultWithInactive).
type ExtensionParams struct {
	NoDeploy          bool
	Reconcile         Reconcile
	RollbackLabel     string
	RollbackComment   string
	WithTransactionID bool
	WithInactive      *bool
}
