package testserver

import (
	"bytes"
	"encoding/xml"
	"sync"
	"time"

	"github.com/damianoneill/nso/netconf/common"
	"github.com/damianoneill/nso/netconf/common/codec"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// SessionHandler represents the server side of an active netconf SSH session.
type SessionHandler struct {
	// t is the testing context used for handling unexpected errors.
	t assert.TestingT

	// ch is the underlying transport connection.
	ch ssh.Channel

	// The codecs used to handle client i/o
	enc *codec.Encoder
	dec *codec.Decoder

	// The capabilities advertised to the client.
	capabilities []string
	// The session id to be reported to the client.
	sid uint64

	// Closed on successful receipt of client capabilities.
	hellochan chan struct{}

	// The queue of handlers used to process incoming client requests.
	// If the queue is empty, a request is processed by defaultHandler.
	reqHandlers    []RequestHandler
	defaultHandler RequestHandler

	mu sync.Mutex
	// The HelloMessage sent by the connecting client.
	clientHello *common.HelloMessage
	// The requests received by the session, in arrival order.
	requests []*RPCRequestMessage
}

// RPCRequestMessage and RPCRequest represent an RPC request from a client, where the element type of the
// request body is unknown.
type RPCRequestMessage struct {
	XMLName   xml.Name
	MessageID string     `xml:"message-id,attr"`
	Request   RPCRequest `xml:",any"`
}

// RPCRequest is the operation element of a request.
type RPCRequest struct {
	XMLName xml.Name
	Body    string `xml:",innerxml"`
}

// RPCReplyMessage and ReplyData represent an rpc-reply message that will be sent to a client session, where the
// element type of the reply body (i.e. the content of the data element) is unknown.
type RPCReplyMessage struct {
	XMLName   xml.Name          `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc-reply"`
	MessageID string            `xml:"message-id,attr"`
	Errors    []common.RPCError `xml:"rpc-error,omitempty"`
	Data      *ReplyData        `xml:"data,omitempty"`
	Body      string            `xml:",innerxml"`
	Ok        *struct{}         `xml:"ok,omitempty"`
}

// ReplyData holds the raw content of a data element.
type ReplyData struct {
	Data string `xml:",innerxml"`
}

// RequestHandler is a function type that will be invoked by the session handler to handle an RPC
// request.
type RequestHandler func(h *SessionHandler, req *RPCRequestMessage)

// EchoRequestHandler responds to a request with a reply containing a data element holding
// the body of the request.
var EchoRequestHandler = func(h *SessionHandler, req *RPCRequestMessage) {
	h.Reply(&RPCReplyMessage{MessageID: req.MessageID, Data: &ReplyData{Data: req.Request.Body}})
}

// OkRequestHandler responds to a request with an ok reply.
var OkRequestHandler = func(h *SessionHandler, req *RPCRequestMessage) {
	h.Reply(&RPCReplyMessage{MessageID: req.MessageID, Ok: &struct{}{}})
}

// FailingRequestHandler replies to a request with an error.
var FailingRequestHandler = func(h *SessionHandler, req *RPCRequestMessage) {
	h.Reply(&RPCReplyMessage{
		MessageID: req.MessageID,
		Errors: []common.RPCError{
			{Type: "application", Tag: "operation-failed", Severity: "error", Message: "oops"},
		},
	})
}

// CloseRequestHandler closes the transport channel on request receipt.
var CloseRequestHandler = func(h *SessionHandler, req *RPCRequestMessage) {
	h.Close()
}

// IgnoreRequestHandler does nothing on receipt of a request.
var IgnoreRequestHandler = func(h *SessionHandler, req *RPCRequestMessage) {}

// BodyRequestHandler delivers a handler that replies with the supplied raw xml as the content of the rpc-reply.
func BodyRequestHandler(body string) RequestHandler {
	return func(h *SessionHandler, req *RPCRequestMessage) {
		h.Reply(&RPCReplyMessage{MessageID: req.MessageID, Body: body})
	}
}

// OperationRequestHandler delivers a handler that selects a handler by the local name of the request
// operation element, falling back to OkRequestHandler for unknown operations.
func OperationRequestHandler(handlers map[string]RequestHandler) RequestHandler {
	return func(h *SessionHandler, req *RPCRequestMessage) {
		rh, ok := handlers[req.Request.XMLName.Local]
		if !ok {
			rh = OkRequestHandler
		}
		rh(h, req)
	}
}

func newSessionHandler(t assert.TestingT, ch ssh.Channel, sid uint64, caps []string,
	reqHandlers []RequestHandler, defaultHandler RequestHandler) *SessionHandler {
	return &SessionHandler{
		t:              t,
		ch:             ch,
		enc:            codec.NewEncoder(ch),
		dec:            codec.NewDecoder(ch),
		sid:            sid,
		hellochan:      make(chan struct{}),
		capabilities:   caps,
		reqHandlers:    append([]RequestHandler(nil), reqHandlers...),
		defaultHandler: defaultHandler,
	}
}

// serve runs a Netconf server session on the handler's channel, returning when the client disconnects.
func (h *SessionHandler) serve() {
	defer h.Close()

	// Send server hello to client.
	err := h.enc.Encode(&common.HelloMessage{Capabilities: h.capabilities, SessionID: h.sid})
	if err != nil {
		return
	}

	for {
		msg, err := h.dec.ReadMessage()
		if err != nil {
			return
		}
		h.handleMessage(msg)
	}
}

func (h *SessionHandler) handleMessage(msg []byte) {
	msg = bytes.TrimSpace(msg)
	name, err := codec.RootName(msg)
	if err != nil {
		return
	}
	switch name {
	case common.NameHello:
		h.handleHello(msg)
	case common.NameRPC:
		h.handleRPC(msg)
	}
}

func (h *SessionHandler) handleHello(msg []byte) {
	hello := &common.HelloMessage{}
	if err := xml.Unmarshal(msg, hello); err != nil {
		h.t.Errorf("Failed to decode client hello %v", err)
		return
	}

	if common.PeerSupportsChunkedFraming(hello.Capabilities) && common.PeerSupportsChunkedFraming(h.capabilities) {
		// Update the codec to use chunked framing from now.
		codec.EnableChunkedFraming(h.dec, h.enc)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientHello == nil {
		h.clientHello = hello
		close(h.hellochan)
	}
}

func (h *SessionHandler) handleRPC(msg []byte) {
	req := &RPCRequestMessage{}
	if err := xml.Unmarshal(msg, req); err != nil {
		h.t.Errorf("Failed to decode rpc %v", err)
		return
	}

	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()

	h.nextReqHandler()(h, req)
}

func (h *SessionHandler) nextReqHandler() (reqh RequestHandler) {
	if len(h.reqHandlers) == 0 {
		return h.defaultHandler
	}
	h.reqHandlers, reqh = h.reqHandlers[1:], h.reqHandlers[0]
	return
}

// Reply sends a reply message to the client.
func (h *SessionHandler) Reply(reply *RPCReplyMessage) {
	err := h.enc.Encode(reply)
	if err != nil {
		h.t.Errorf("Failed to encode response %v", err)
	}
}

// WaitStart waits for the client hello to be received, reporting whether it arrived within the timeout.
func (h *SessionHandler) WaitStart(timeout time.Duration) bool {
	select {
	case <-h.hellochan:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ClientHello delivers the hello message sent by the client, or nil if none has been received.
func (h *SessionHandler) ClientHello() *common.HelloMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientHello
}

// ReqCount delivers the number of requests received by the session.
func (h *SessionHandler) ReqCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

// LastReq delivers the most recent request received by the session, or nil if there is none.
func (h *SessionHandler) LastReq() *RPCRequestMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		return nil
	}
	return h.requests[len(h.requests)-1]
}

// Requests delivers the requests received by the session, in arrival order.
func (h *SessionHandler) Requests() []*RPCRequestMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*RPCRequestMessage(nil), h.requests...)
}

// Close initiates session tear-down by closing the underlying transport channel.
func (h *SessionHandler) Close() {
	_ = h.ch.Close()
}
