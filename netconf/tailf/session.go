package tailf

import (
	"sync"

	"github.com/damianoneill/nso/netconf/common"
	"github.com/damianoneill/nso/netconf/ops"

	log "github.com/sirupsen/logrus"
)

// Session is an operations session against an NSO server that understands the tail-f
// transaction extensions. Lock, Unlock and the operations below are checked against
// the transaction state of the session before anything is sent. Execute is not checked.
type Session interface {
	ops.OpSession

	// StartTransaction opens a transaction on the target datastore (candidate by default).
	StartTransaction(opts ...Option) (*common.RPCReply, error)

	// EditConfig applies configuration within the open transaction.
	EditConfig(opts ...Option) (*common.RPCReply, error)

	// CopyConfig replaces the target with the source, within the open transaction.
	CopyConfig(opts ...Option) (*common.RPCReply, error)

	// PrepareTransaction runs the first phase of the transaction commit, or a dry-run.
	PrepareTransaction(opts ...Option) (*common.RPCReply, error)

	// CommitTransaction completes a prepared transaction.
	CommitTransaction(opts ...Option) (*common.RPCReply, error)

	// AbortTransaction discards an open or prepared transaction.
	AbortTransaction() (*common.RPCReply, error)

	// Commit commits the candidate datastore, outside of any transaction.
	Commit(opts ...Option) (*common.RPCReply, error)

	// Dispatch issues the operation registered under name.
	Dispatch(name string, opts ...Option) (*common.RPCReply, error)

	// State returns the transaction state of the session.
	State() State
}

type sImpl struct {
	ops.OpSession

	registry *Registry

	mu      sync.Mutex
	tracker *Tracker
}

// NewSessionFromOps delivers a Session that issues requests over an established operations session,
// using the default registry.
func NewSessionFromOps(s ops.OpSession) Session {
	return NewSessionFromOpsWithRegistry(s, nil)
}

// NewSessionFromOpsWithRegistry delivers a Session that resolves operations with the supplied registry.
// A nil registry is replaced by DefaultRegistry.
func NewSessionFromOpsWithRegistry(s ops.OpSession, r *Registry) Session {
	if r == nil {
		r = DefaultRegistry()
	}
	return &sImpl{OpSession: s, registry: r, tracker: NewTracker()}
}

func (s *sImpl) StartTransaction(opts ...Option) (*common.RPCReply, error) {
	return s.Dispatch(OpStartTransaction.String(), opts...)
}

func (s *sImpl) EditConfig(opts ...Option) (*common.RPCReply, error) {
	return s.Dispatch(OpEditConfig.String(), opts...)
}

func (s *sImpl) CopyConfig(opts ...Option) (*common.RPCReply, error) {
	return s.Dispatch(OpCopyConfig.String(), opts...)
}

func (s *sImpl) PrepareTransaction(opts ...Option) (*common.RPCReply, error) {
	return s.Dispatch(OpPrepareTransaction.String(), opts...)
}

func (s *sImpl) CommitTransaction(opts ...Option) (*common.RPCReply, error) {
	return s.Dispatch(OpCommitTransaction.String(), opts...)
}

func (s *sImpl) AbortTransaction() (*common.RPCReply, error) {
	return s.Dispatch(OpAbortTransaction.String())
}

func (s *sImpl) Commit(opts ...Option) (*common.RPCReply, error) {
	return s.Dispatch(OpCommit.String(), opts...)
}

func (s *sImpl) Lock(target string) error {
	return s.step(EventLock, target, func() error {
		return s.OpSession.Lock(target)
	})
}

func (s *sImpl) Unlock(target string) error {
	return s.step(EventUnlock, target, func() error {
		return s.OpSession.Unlock(target)
	})
}

func (s *sImpl) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.State()
}

// Dispatch builds the request with the registered builder and the server capabilities, then executes it.
// An operation that is not one of the NSO operations is executed without state tracking.
func (s *sImpl) Dispatch(name string, opts ...Option) (reply *common.RPCReply, err error) {
	build, ok := s.registry.Lookup(name)
	if !ok {
		return nil, invalidArgument(nil, "no builder registered for operation %q", name)
	}

	issue := func() error {
		node, err := build(s.ServerCapabilities(), opts...)
		if err != nil {
			return err
		}
		body, err := Serialize(node)
		if err != nil {
			return malformedPayload(nil, err, "failed to serialize %s", name)
		}
		reply, err = s.Execute(body)
		return err
	}

	if _, known := ParseOpKind(name); !known {
		s.mu.Lock()
		defer s.mu.Unlock()
		err = issue()
		return reply, err
	}
	err = s.step(Event(name), "", issue)
	return reply, err
}

// step issues a request for event, applying the state transition only if it succeeds.
func (s *sImpl) step(event Event, datastore string, issue func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.WithFields(log.Fields{"operation": event, "state": s.tracker.State(), "session": s.ID()})
	if err := s.tracker.CheckOn(event, datastore); err != nil {
		logger.WithError(err).Debug("NSO-Rejected")
		return err
	}
	if err := issue(); err != nil {
		logger.WithError(err).Debug("NSO-Failed")
		return err
	}
	next, err := s.tracker.TransitionOn(event, datastore)
	logger.WithField("next", next).Debug("NSO-Done")
	return err
}
