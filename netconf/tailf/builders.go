package tailf

import (
	"strconv"
	"strings"

	"github.com/damianoneill/nso/netconf/common"

	"github.com/beevik/etree"
)

// Builder builds the request element of an operation, validating the options against
// the operation and the capabilities advertised by the server.
// A builder either returns a complete element or an *OperationError.
type Builder func(caps []string, opts ...Option) (*etree.Element, error)

// BuildStartTransaction builds a start-transaction request.
// The target defaults to candidate and inactive configuration is included unless WithInactive(false) is given.
func BuildStartTransaction(caps []string, opts ...Option) (*etree.Element, error) {
	op := OpStartTransaction
	r := newRequest(op, opts)
	if err := r.validate(op); err != nil {
		return nil, err
	}
	target := r.targetOr(Candidate)
	if err := validateDatastore(op, caps, "target", target, false); err != nil {
		return nil, err
	}

	node := newElement(op.String(), op.Namespace())
	appendDatastore(subElement(node, "target", op.Namespace()), target)
	EncodeWithInactive(node, r.withInactive)
	return node, nil
}

// BuildEditConfig builds an edit-config request. WithConfig is mandatory and the target defaults to candidate.
func BuildEditConfig(caps []string, opts ...Option) (*etree.Element, error) {
	op := OpEditConfig
	r := newRequest(op, opts)
	if err := r.validate(op); err != nil {
		return nil, err
	}
	target := r.targetOr(Candidate)
	if err := validateDatastore(op, caps, "target", target, true); err != nil {
		return nil, err
	}
	if err := r.validateEditOptions(op, caps); err != nil {
		return nil, err
	}
	if r.config == nil {
		return nil, invalidArgument(op, "config is required")
	}
	cfg, err := r.config.element(op)
	if err != nil {
		return nil, err
	}

	node := newElement(op.String(), op.Namespace())
	appendDatastore(subElement(node, "target", NSBase), target)
	if r.has(pDefaultOperation) {
		textElement(node, "default-operation", NSBase, r.defaultOperation)
	}
	if r.has(pTestOption) {
		textElement(node, "test-option", NSBase, r.testOption)
	}
	if r.has(pErrorOption) {
		textElement(node, "error-option", NSBase, r.errorOption)
	}
	if err = EncodeServiceCommitParams(node, r.ext.NoDeploy, r.ext.Reconcile); err != nil {
		return nil, err
	}
	EncodeRollbackMetadata(node, r.ext.RollbackLabel, r.ext.RollbackComment)
	EncodeWithTransactionID(node, r.ext.WithTransactionID)
	EncodeWithInactive(node, r.withInactive)
	node.AddChild(cfg)
	return node, nil
}

// BuildCopyConfig builds a copy-config request. Target and WithSource are mandatory.
func BuildCopyConfig(caps []string, opts ...Option) (*etree.Element, error) {
	op := OpCopyConfig
	r := newRequest(op, opts)
	if err := r.validate(op); err != nil {
		return nil, err
	}
	if !r.has(pTarget) {
		return nil, invalidArgument(op, "target is required")
	}
	if err := validateDatastore(op, caps, "target", r.target, true); err != nil {
		return nil, err
	}
	if !r.has(pSource) {
		return nil, invalidArgument(op, "source is required")
	}

	var inline *etree.Element
	if r.source.inline != nil {
		if _, ok := r.source.inline.(TextConfig); ok {
			return nil, invalidArgument(op, "source cannot be configuration text")
		}
		var err error
		if inline, err = r.source.inline.element(op); err != nil {
			return nil, err
		}
	} else if err := validateDatastore(op, caps, "source", r.source.datastore, true); err != nil {
		return nil, err
	}

	node := newElement(op.String(), op.Namespace())
	appendDatastore(subElement(node, "target", NSBase), r.target)
	source := subElement(node, "source", NSBase)
	if inline != nil {
		source.AddChild(inline)
	} else {
		appendDatastore(source, r.source.datastore)
	}
	if err := EncodeServiceCommitParams(node, r.ext.NoDeploy, r.ext.Reconcile); err != nil {
		return nil, err
	}
	EncodeWithTransactionID(node, r.ext.WithTransactionID)
	EncodeWithInactive(node, r.withInactive)
	return node, nil
}

// BuildPrepareTransaction builds a prepare-transaction request.
func BuildPrepareTransaction(_ []string, opts ...Option) (*etree.Element, error) {
	op := OpPrepareTransaction
	r := newRequest(op, opts)
	if err := r.validate(op); err != nil {
		return nil, err
	}
	var dryRun *DryRun
	if r.has(pDryRun) {
		if err := validateDryRun(op, &r.dryRun); err != nil {
			return nil, err
		}
		dryRun = &r.dryRun
	}

	node := newElement(op.String(), op.Namespace())
	if err := EncodeDryRun(node, dryRun); err != nil {
		return nil, err
	}
	if err := EncodeServiceCommitParams(node, r.ext.NoDeploy, r.ext.Reconcile); err != nil {
		return nil, err
	}
	EncodeRollbackMetadata(node, r.ext.RollbackLabel, r.ext.RollbackComment)
	return node, nil
}

// BuildCommitTransaction builds a commit-transaction request.
func BuildCommitTransaction(_ []string, opts ...Option) (*etree.Element, error) {
	op := OpCommitTransaction
	r := newRequest(op, opts)
	if err := r.validate(op); err != nil {
		return nil, err
	}

	node := newElement(op.String(), op.Namespace())
	EncodeWithTransactionID(node, r.ext.WithTransactionID)
	return node, nil
}

// BuildAbortTransaction builds an abort-transaction request. It accepts no options.
func BuildAbortTransaction(_ []string, opts ...Option) (*etree.Element, error) {
	op := OpAbortTransaction
	r := newRequest(op, opts)
	if err := r.validate(op); err != nil {
		return nil, err
	}
	return newElement(op.String(), op.Namespace()), nil
}

// BuildCommit builds a commit request, which requires the :candidate capability.
// PersistID cannot be combined with Confirmed or Persist. ConfirmTimeout and Persist are
// only sent for a confirmed commit.
func BuildCommit(caps []string, opts ...Option) (*etree.Element, error) {
	op := OpCommit
	r := newRequest(op, opts)
	if err := r.validate(op); err != nil {
		return nil, err
	}
	if r.has(pPersistID) && (r.confirmed || r.has(pPersist)) {
		return nil, invalidArgument(op, "persist-id cannot be combined with confirmed or persist")
	}
	if r.has(pPersistID) && r.persistID == "" {
		return nil, invalidArgument(op, "persist-id must not be empty")
	}
	if r.has(pPersist) && r.persist == "" {
		return nil, invalidArgument(op, "persist must not be empty")
	}
	if r.has(pConfirmTimeout) && r.confirmTimeout <= 0 {
		return nil, invalidArgument(op, "confirm-timeout must be positive, got %d", r.confirmTimeout)
	}
	if !common.PeerSupports(caps, common.Candidate) {
		return nil, unsupportedCapability(op, common.Candidate)
	}
	if r.confirmed && !common.PeerSupports(caps, common.ConfirmedCommit) {
		return nil, unsupportedCapability(op, common.ConfirmedCommit)
	}

	node := newElement(op.String(), op.Namespace())
	if r.confirmed {
		subElement(node, "confirmed", NSBase)
		if r.has(pConfirmTimeout) {
			textElement(node, "confirm-timeout", NSBase, strconv.Itoa(r.confirmTimeout))
		}
		if r.has(pPersist) {
			textElement(node, "persist", NSBase, r.persist)
		}
	}
	if r.has(pPersistID) {
		textElement(node, "persist-id", NSBase, r.persistID)
	}
	if err := EncodeServiceCommitParams(node, r.ext.NoDeploy, r.ext.Reconcile); err != nil {
		return nil, err
	}
	EncodeRollbackMetadata(node, r.ext.RollbackLabel, r.ext.RollbackComment)
	EncodeWithTransactionID(node, r.ext.WithTransactionID)
	return node, nil
}

// validate checks the options that apply to every operation.
func (r *request) validate(op OpKind) error {
	if name, ok := r.unsupported(opParams[op]); ok {
		return invalidArgument(op, "%s is not a parameter of %s", name, op)
	}
	if !r.ext.Reconcile.Valid() {
		return invalidArgument(op, "unknown reconcile mode %q", r.ext.Reconcile)
	}
	return nil
}

func (r *request) validateEditOptions(op OpKind, caps []string) error {
	if r.has(pDefaultOperation) && !oneOf(r.defaultOperation, MergeOp, ReplaceOp, NoneOp) {
		return invalidArgument(op, "unknown default-operation %q", r.defaultOperation)
	}
	if r.has(pTestOption) {
		if !oneOf(r.testOption, TestThenSetOpt, SetOpt, TestOnlyOpt) {
			return invalidArgument(op, "unknown test-option %q", r.testOption)
		}
		if !common.PeerSupports(caps, common.Validate) {
			return unsupportedCapability(op, common.Validate)
		}
	}
	if r.has(pErrorOption) {
		if !oneOf(r.errorOption, StopOnErrorErrOpt, ContinueOnErrorErrOpt, RollbackOnErrorErrOpt) {
			return invalidArgument(op, "unknown error-option %q", r.errorOption)
		}
		if r.errorOption == RollbackOnErrorErrOpt && !common.PeerSupports(caps, common.RollbackOnError) {
			return unsupportedCapability(op, common.RollbackOnError)
		}
	}
	return nil
}

func (r *request) targetOr(dflt string) string {
	if r.has(pTarget) {
		return r.target
	}
	return dflt
}

func isURL(loc string) bool {
	return strings.Contains(loc, "://")
}

// validateDatastore checks a datastore name, or a URL where allowed.
func validateDatastore(op OpKind, caps []string, what, loc string, allowURL bool) error {
	switch {
	case loc == "":
		return invalidArgument(op, "%s is required", what)
	case isURL(loc):
		if !allowURL {
			return invalidArgument(op, "%s must be a datastore name, not a url", what)
		}
		if !common.PeerSupports(caps, common.URL) {
			return unsupportedCapability(op, common.URL)
		}
	case !oneOf(loc, Running, Candidate, Startup):
		return invalidArgument(op, "unknown %s datastore %q", what, loc)
	}
	return nil
}

// appendDatastore adds either <name/> or <url>loc</url> to parent, in the parent's namespace.
func appendDatastore(parent *etree.Element, loc string) {
	ns := parent.NamespaceURI()
	if isURL(loc) {
		textElement(parent, "url", ns, loc)
		return
	}
	subElement(parent, loc, ns)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
