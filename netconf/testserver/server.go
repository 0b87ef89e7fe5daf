package testserver

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/damianoneill/nso/netconf/common"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// Defines credentials used for test sessions.
const (
	TestUserName = "testUser"
	TestPassword = "testPassword"
)

// DefaultCapabilities are advertised by a test server unless overridden with WithCapabilities.
var DefaultCapabilities = []string{
	common.CapBase10,
	common.CapBase11,
	common.CapCandidate,
	common.CapConfirmedCommit,
	common.CapRollbackOnError,
	common.CapValidate,
	common.CapURL + "?scheme=file",
	"http://tail-f.com/ns/netconf/transactions/1.0",
	"http://tail-f.com/ns/netconf/with-transaction-id",
	"http://tail-f.com/ns/netconf/inactive/1.0",
}

// TestNCServer represents a Netconf Server that can be used for 'on-board' testing.
// It encapsulates a transport connection to an SSH server, and a netconf session handler that will
// be invoked to handle netconf messages.
type TestNCServer struct {
	*SSHServer
	tctx assert.TestingT

	mu              sync.Mutex
	sessionHandlers map[uint64]*SessionHandler
	reqHandlers     []RequestHandler
	defaultHandler  RequestHandler
	caps            []string
	nextSid         uint64
}

// NewTestNetconfServer creates a new TestNCServer that will accept Netconf localhost connections on an ephemeral port
// (available via Port()), with credentials defined by TestUserName and TestPassword.
// tctx will be used for handling failures; if the supplied value is nil, a default test context will be used.
// The behaviour of the Netconf session handler can be configured using the WithCapabilities and
// WithRequestHandler methods.
func NewTestNetconfServer(tctx assert.TestingT) *TestNCServer {

	ncs := &TestNCServer{
		sessionHandlers: make(map[uint64]*SessionHandler),
		caps:            DefaultCapabilities,
		defaultHandler:  EchoRequestHandler,
	}

	if tctx == nil {
		// Default test context to built-in implementation.
		tctx = ncs
	}
	ncs.tctx = tctx

	ncs.SSHServer = NewSSHServerHandler(tctx, TestUserName, TestPassword, func(ch ssh.Channel) {
		ncs.newSessionHandler(ch).serve()
	})

	return ncs
}

// WithRequestHandler adds a request handler to the queue used by subsequently created sessions.
// Each queued handler processes exactly one request; once the queue is exhausted the default handler is used.
func (ncs *TestNCServer) WithRequestHandler(rh RequestHandler) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.reqHandlers = append(ncs.reqHandlers, rh)
	return ncs
}

// WithDefaultRequestHandler defines the handler used when the request handler queue is empty.
// If not set, EchoRequestHandler is used.
func (ncs *TestNCServer) WithDefaultRequestHandler(rh RequestHandler) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.defaultHandler = rh
	return ncs
}

// WithCapabilities define the capabilities that the server will advertise when a netconf client connects.
func (ncs *TestNCServer) WithCapabilities(caps []string) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.caps = caps
	return ncs
}

// ClientConfig delivers an ssh client configuration that will authenticate with the server.
func (ncs *TestNCServer) ClientConfig() *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            TestUserName,
		Auth:            []ssh.AuthMethod{ssh.Password(TestPassword)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	}
}

// Close closes any active transport to the test server and prevents subsequent connections.
func (ncs *TestNCServer) Close() {
	ncs.SSHServer.Close()

	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	for _, h := range ncs.sessionHandlers {
		h.Close()
	}
}

// SessionHandler delivers the netconf session handler associated with the specified session id.
func (ncs *TestNCServer) SessionHandler(id uint64) *SessionHandler {
	ncs.mu.Lock()
	sh, ok := ncs.sessionHandlers[id]
	ncs.mu.Unlock()
	if !ok {
		ncs.tctx.Errorf("Failed to get handler for session %d", id)
		ncs.tctx.FailNow()
	}
	return sh
}

// LastHandler delivers the most recently created session handler.
func (ncs *TestNCServer) LastHandler() *SessionHandler {
	return ncs.SessionHandler(atomic.LoadUint64(&ncs.nextSid))
}

// Errorf provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) Errorf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// FailNow provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) FailNow() {
	runtime.Goexit()
}

func (ncs *TestNCServer) newSessionHandler(ch ssh.Channel) *SessionHandler {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()

	sid := atomic.AddUint64(&ncs.nextSid, 1)
	h := newSessionHandler(ncs.tctx, ch, sid, ncs.caps, ncs.reqHandlers, ncs.defaultHandler)
	ncs.sessionHandlers[sid] = h
	return h
}
