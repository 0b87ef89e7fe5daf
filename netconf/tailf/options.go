package tailf

import (
	"github.com/beevik/etree"
)

// Option sets a parameter of an operation request.
// A builder rejects an option that its operation does not accept.
type Option func(*request)

type param uint32

const (
	pTarget param = 1 << iota
	pConfig
	pSource
	pDefaultOperation
	pTestOption
	pErrorOption
	pNoDeploy
	pReconcile
	pRollbackLabel
	pRollbackComment
	pWithTransactionID
	pWithInactive
	pDryRun
	pConfirmed
	pConfirmTimeout
	pPersist
	pPersistID
)

var paramNames = map[param]string{
	pTarget:            "target",
	pConfig:            "config",
	pSource:            "source",
	pDefaultOperation:  "default-operation",
	pTestOption:        "test-option",
	pErrorOption:       "error-option",
	pNoDeploy:          "no-deploy",
	pReconcile:         "reconcile",
	pRollbackLabel:     "label",
	pRollbackComment:   "comment",
	pWithTransactionID: "with-transaction-id",
	pWithInactive:      "with-inactive",
	pDryRun:            "dry-run",
	pConfirmed:         "confirmed",
	pConfirmTimeout:    "confirm-timeout",
	pPersist:           "persist",
	pPersistID:         "persist-id",
}

// The parameters accepted by each operation.
var opParams = map[OpKind]param{
	OpStartTransaction: pTarget | pWithInactive,
	OpEditConfig: pTarget | pConfig | pDefaultOperation | pTestOption | pErrorOption |
		pNoDeploy | pReconcile | pRollbackLabel | pRollbackComment | pWithTransactionID | pWithInactive,
	OpCopyConfig:         pTarget | pSource | pNoDeploy | pReconcile | pWithTransactionID | pWithInactive,
	OpPrepareTransaction: pDryRun | pNoDeploy | pReconcile | pRollbackLabel | pRollbackComment,
	OpCommitTransaction:  pWithTransactionID,
	OpAbortTransaction:   0,
	OpCommit: pConfirmed | pConfirmTimeout | pPersist | pPersistID |
		pNoDeploy | pReconcile | pRollbackLabel | pRollbackComment | pWithTransactionID,
}

// request collects the options of a single build call.
type request struct {
	set param

	target           string
	config           ConfigPayload
	source           Source
	defaultOperation string
	testOption       string
	errorOption      string
	ext              ExtensionParams
	withInactive     bool
	dryRun           DryRun
	confirmed        bool
	confirmTimeout   int
	persist          string
	persistID        string
}

func newRequest(op OpKind, opts []Option) *request {
	r := &request{withInactive: DefaultWithInactive(op)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *request) has(p param) bool {
	return r.set&p != 0
}

// unsupported returns the name of the first parameter not in allowed, if any.
func (r *request) unsupported(allowed param) (string, bool) {
	extra := r.set &^ allowed
	for p := param(1); p != 0 && p <= extra; p <<= 1 {
		if extra&p != 0 {
			return paramNames[p], true
		}
	}
	return "", false
}

// Datastore names.
const (
	Running   = "running"
	Candidate = "candidate"
	Startup   = "startup"
)

// Values of the edit-config default-operation parameter.
const (
	MergeOp   = "merge"
	ReplaceOp = "replace"
	NoneOp    = "none"
)

// Values of the edit-config test-option parameter.
const (
	TestThenSetOpt = "test-then-set"
	SetOpt         = "set"
	TestOnlyOpt    = "test-only"
)

// Values of the edit-config error-option parameter.
const (
	StopOnErrorErrOpt     = "stop-on-error"
	ContinueOnErrorErrOpt = "continue-on-error"
	RollbackOnErrorErrOpt = "rollback-on-error"
)

// Target sets the target datastore: running, candidate or startup. edit-config and copy-config also
// accept a URL, which requires the :url capability.
func Target(name string) Option {
	return func(r *request) {
		r.set |= pTarget
		r.target = name
	}
}

// WithConfig sets the configuration applied by edit-config.
func WithConfig(p ConfigPayload) Option {
	return func(r *request) {
		r.set |= pConfig
		r.config = p
	}
}

// WithSource sets the source of copy-config.
func WithSource(s Source) Option {
	return func(r *request) {
		r.set |= pSource
		r.source = s
	}
}

// DefaultOperation sets the edit-config default operation: merge, replace or none.
func DefaultOperation(oper string) Option {
	return func(r *request) {
		r.set |= pDefaultOperation
		r.defaultOperation = oper
	}
}

// TestOption sets the edit-config test option, which requires the :validate capability.
func TestOption(opt string) Option {
	return func(r *request) {
		r.set |= pTestOption
		r.testOption = opt
	}
}

// ErrorOption sets the edit-config error option. rollback-on-error requires the :rollback-on-error capability.
func ErrorOption(opt string) Option {
	return func(r *request) {
		r.set |= pErrorOption
		r.errorOption = opt
	}
}

// NoDeploy stops NSO deploying service changes to the network.
func NoDeploy() Option {
	return func(r *request) {
		r.set |= pNoDeploy
		r.ext.NoDeploy = true
	}
}

// WithReconcile sets the service reconcile mode.
func WithReconcile(mode Reconcile) Option {
	return func(r *request) {
		r.set |= pReconcile
		r.ext.Reconcile = mode
	}
}

// RollbackLabel sets the label recorded in the rollback file.
func RollbackLabel(label string) Option {
	return func(r *request) {
		r.set |= pRollbackLabel
		r.ext.RollbackLabel = label
	}
}

// RollbackComment sets the comment recorded in the rollback file.
func RollbackComment(comment string) Option {
	return func(r *request) {
		r.set |= pRollbackComment
		r.ext.RollbackComment = comment
	}
}

// WithTransactionID asks the server to return the id of the resulting transaction.
func WithTransactionID() Option {
	return func(r *request) {
		r.set |= pWithTransactionID
		r.ext.WithTransactionID = true
	}
}

// WithInactive controls whether inactive configuration is included.
func WithInactive(enabled bool) Option {
	return func(r *request) {
		r.set |= pWithInactive
		r.withInactive = enabled
	}
}

// WithParams applies each parameter that is present in a bundle.
func WithParams(p ExtensionParams) Option {
	return func(r *request) {
		if p.NoDeploy {
			NoDeploy()(r)
		}
		if p.Reconcile != ReconcileNone {
			WithReconcile(p.Reconcile)(r)
		}
		if p.RollbackLabel != "" {
			RollbackLabel(p.RollbackLabel)(r)
		}
		if p.RollbackComment != "" {
			RollbackComment(p.RollbackComment)(r)
		}
		if p.WithTransactionID {
			WithTransactionID()(r)
		}
		if p.WithInactive != nil {
			WithInactive(*p.WithInactive)(r)
		}
	}
}

// WithDryRun asks prepare-transaction to report the changes instead of applying them.
func WithDryRun(dr DryRun) Option {
	return func(r *request) {
		r.set |= pDryRun
		r.dryRun = dr
	}
}

// Confirmed makes commit a confirmed commit, which requires the :confirmed-commit capability.
func Confirmed() Option {
	return func(r *request) {
		r.set |= pConfirmed
		r.confirmed = true
	}
}

// ConfirmTimeout sets the seconds before an unconfirmed commit is reverted. Only sent with Confirmed.
func ConfirmTimeout(secs int) Option {
	return func(r *request) {
		r.set |= pConfirmTimeout
		r.confirmTimeout = secs
	}
}

// Persist makes a confirmed commit survive the end of the session, identified by token. Only sent with Confirmed.
func Persist(token string) Option {
	return func(r *request) {
		r.set |= pPersist
		r.persist = token
	}
}

// PersistID confirms or cancels the persistent confirmed commit identified by id.
func PersistID(id string) Option {
	return func(r *request) {
		r.set |= pPersistID
		r.persistID = id
	}
}

// ConfigPayload is the configuration carried by edit-config or copy-config.
type ConfigPayload interface {
	// element returns the element to attach, config or config-text.
	element(op OpKind) (*etree.Element, error)
}

// TextConfig is configuration in NSO's text format, sent as config-text.
type TextConfig string

// XMLConfig is configuration as an XML document.
type XMLConfig string

// ElementConfig delivers configuration held as an element tree. The element is copied, not modified.
func ElementConfig(el *etree.Element) ConfigPayload {
	return elementConfig{root: el}
}

type elementConfig struct {
	root *etree.Element
}

func (c TextConfig) element(op OpKind) (*etree.Element, error) {
	if c == "" {
		return nil, malformedPayload(op, nil, "empty configuration text")
	}
	el := etree.NewElement("config-text")
	el.CreateElement("configuration-text").SetText(string(c))
	return el, nil
}

func (c XMLConfig) element(op OpKind) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(string(c)); err != nil {
		return nil, malformedPayload(op, err, "configuration is not well-formed xml")
	}
	switch roots := doc.ChildElements(); len(roots) {
	case 0:
		return nil, malformedPayload(op, nil, "configuration has no root element")
	case 1:
		return configElement(op, roots[0])
	default:
		return nil, malformedPayload(op, nil, "configuration has %d root elements", len(roots))
	}
}

func (c elementConfig) element(op OpKind) (*etree.Element, error) {
	if c.root == nil {
		return nil, malformedPayload(op, nil, "configuration has no root element")
	}
	return configElement(op, c.root)
}

// configElement returns a copy of root re-tagged as the base namespace config
// element. Children that inherited a different default namespace from root
// keep it, and prefixes declared above root are declared on the copy.
func configElement(op OpKind, root *etree.Element) (*etree.Element, error) {
	inherited := defaultNamespace(root)
	el := root.Copy()

	el.Space = ""
	el.Tag = "config"
	el.RemoveAttr("xmlns")
	if inherited != "" && inherited != NSBase {
		for _, child := range el.ChildElements() {
			if child.Space == "" && child.SelectAttr("xmlns") == nil {
				child.CreateAttr("xmlns", inherited)
			}
		}
	}

	used := map[string]bool{}
	usedPrefixes(el, used)
	for a := root.Parent(); a != nil; a = a.Parent() {
		for _, attr := range a.Attr {
			if attr.Space == "xmlns" && used[attr.Key] && el.SelectAttr("xmlns:"+attr.Key) == nil {
				el.CreateAttr("xmlns:"+attr.Key, attr.Value)
			}
		}
	}
	if prefix, ok := unboundPrefix(el, nil); ok {
		return nil, malformedPayload(op, nil, "namespace prefix %q is not declared", prefix)
	}
	return el, nil
}

// usedPrefixes records the namespace prefixes used by el and its descendants.
func usedPrefixes(el *etree.Element, used map[string]bool) {
	if el.Space != "" {
		used[el.Space] = true
	}
	for _, attr := range el.Attr {
		if attr.Space != "" && attr.Space != "xmlns" {
			used[attr.Space] = true
		}
	}
	for _, child := range el.ChildElements() {
		usedPrefixes(child, used)
	}
}

// unboundPrefix returns a prefix used within el that is not declared in scope.
func unboundPrefix(el *etree.Element, scope map[string]bool) (string, bool) {
	local, copied := scope, false
	for _, attr := range el.Attr {
		if attr.Space != "xmlns" {
			continue
		}
		if !copied {
			local = make(map[string]bool, len(scope)+1)
			for k := range scope {
				local[k] = true
			}
			copied = true
		}
		local[attr.Key] = true
	}

	bound := func(prefix string) bool {
		return prefix == "" || prefix == "xml" || prefix == "xmlns" || local[prefix]
	}
	if !bound(el.Space) {
		return el.Space, true
	}
	for _, attr := range el.Attr {
		if !bound(attr.Space) {
			return attr.Space, true
		}
	}
	for _, child := range el.ChildElements() {
		if prefix, ok := unboundPrefix(child, local); ok {
			return prefix, true
		}
	}
	return "", false
}

// Source is the source of a copy-config: a datastore, a URL or inline configuration.
type Source struct {
	datastore string
	inline    ConfigPayload
}

// DatastoreSource copies from a datastore, or from a URL (which requires the :url capability).
func DatastoreSource(nameOrURL string) Source {
	return Source{datastore: nameOrURL}
}

// InlineSource copies the supplied configuration. Text payloads are not accepted.
func InlineSource(p ConfigPayload) Source {
	return Source{inline: p}
}
