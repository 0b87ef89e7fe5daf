package tailf

// State is the position of a session in the NSO transaction protocol.
type State int

// Transaction states.
const (
	StateIdle State = iota
	StateLocked
	StateInTransaction
	StatePrepared
	StateCommitted
	StateAborted
	StateUnlocked
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateLocked:        "locked",
	StateInTransaction: "in-transaction",
	StatePrepared:      "prepared",
	StateCommitted:     "committed",
	StateAborted:       "aborted",
	StateUnlocked:      "unlocked",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Event is a step of the protocol: an operation name, or lock/unlock.
type Event string

// Lock and unlock events. The other events are the operation names, see EventOf.
const (
	EventLock   Event = "lock"
	EventUnlock Event = "unlock"
)

// EventOf returns the event issued by an operation.
func EventOf(op OpKind) Event {
	return Event(op.String())
}

func (e Event) String() string {
	return string(e)
}

// Outside a transaction a session may lock, unlock, start a transaction or commit.
func outsideTransaction(self State) map[Event]State {
	return map[Event]State{
		EventLock:                   StateLocked,
		EventUnlock:                 StateUnlocked,
		EventOf(OpStartTransaction): StateInTransaction,
		EventOf(OpCommit):           self,
	}
}

var transitions = map[State]map[Event]State{
	StateIdle:      outsideTransaction(StateIdle),
	StateLocked:    outsideTransaction(StateLocked),
	StateCommitted: outsideTransaction(StateCommitted),
	StateAborted:   outsideTransaction(StateAborted),
	StateUnlocked:  outsideTransaction(StateUnlocked),
	StateInTransaction: {
		EventOf(OpEditConfig):         StateInTransaction,
		EventOf(OpCopyConfig):         StateInTransaction,
		EventOf(OpPrepareTransaction): StatePrepared,
		EventOf(OpAbortTransaction):   StateAborted,
	},
	StatePrepared: {
		EventOf(OpCommitTransaction): StateCommitted,
		EventOf(OpAbortTransaction):  StateAborted,
	},
}

// Tracker follows the transaction state of a single session, so that a step issued out of order
// is rejected before it is sent. A Tracker is not safe for concurrent use.
type Tracker struct {
	state     State
	locked    bool
	datastore string
}

// NewTracker delivers a tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{state: StateIdle}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Locked reports whether the session holds the datastore lock.
func (t *Tracker) Locked() bool {
	return t.locked
}

// LockedDatastore returns the datastore named by the lock held, if any.
func (t *Tracker) LockedDatastore() string {
	return t.datastore
}

// Check reports an ErrProtocolOrder error if event is not allowed in the current state.
func (t *Tracker) Check(event Event) error {
	return t.CheckOn(event, "")
}

// CheckOn is Check for an event that names a datastore. An unlock must name the
// datastore that was locked. An empty datastore is not compared.
func (t *Tracker) CheckOn(event Event, datastore string) error {
	_, err := t.next(event, datastore)
	return err
}

// Transition applies event, returning the new state.
func (t *Tracker) Transition(event Event) (State, error) {
	return t.TransitionOn(event, "")
}

// TransitionOn is Transition for an event that names a datastore.
func (t *Tracker) TransitionOn(event Event, datastore string) (State, error) {
	next, err := t.next(event, datastore)
	if err != nil {
		return t.state, err
	}
	t.state = next
	switch event {
	case EventLock:
		t.locked, t.datastore = true, datastore
	case EventUnlock:
		t.locked, t.datastore = false, ""
	}
	return next, nil
}

func (t *Tracker) next(event Event, datastore string) (State, error) {
	if _, ok := ParseOpKind(string(event)); !ok && event != EventLock && event != EventUnlock {
		return t.state, invalidArgument(event, "unknown event")
	}
	next, ok := transitions[t.state][event]
	if !ok {
		return t.state, newOperationError(event, ErrProtocolOrder, nil, "not allowed in state %s", t.state)
	}
	switch {
	case event == EventLock && t.locked:
		return t.state, newOperationError(event, ErrProtocolOrder, nil, "datastore is already locked")
	case event == EventUnlock && !t.locked:
		return t.state, newOperationError(event, ErrProtocolOrder, nil, "datastore is not locked")
	case event == EventUnlock && datastore != "" && t.datastore != "" && datastore != t.datastore:
		return t.state, newOperationError(event, ErrProtocolOrder, nil, "%s is not locked, %s is", datastore, t.datastore)
	}
	return next, nil
}
