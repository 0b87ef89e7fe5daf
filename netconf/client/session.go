package client

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"sync"
	"time"

	"github.com/damianoneill/nso/netconf/common"
	"github.com/damianoneill/nso/netconf/common/codec"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// The Message layer defines a set of base protocol operations
// invoked as RPC methods with XML-encoded parameters.

// Session represents a Netconf Session
type Session interface {
	// Execute executes an RPC request on the server and returns the reply.
	// Requests are executed one at a time; concurrent callers are serialised.
	Execute(req common.Request) (*common.RPCReply, error)

	// Close closes the session and releases any associated resources.
	Close()

	// ID delivers the server-allocated id of the session.
	ID() uint64

	// ServerCapabilities delivers the server-supplied capabilities.
	ServerCapabilities() []string
}

type sesImpl struct {
	cfg   *Config
	t     Transport
	dec   *codec.Decoder
	enc   *codec.Encoder
	trace *ClientTrace

	hello   *common.HelloMessage
	reqLock sync.Mutex

	target string
}

// ErrNoHello is reported when the server does not send a hello within the setup timeout.
var ErrNoHello = errors.New("failed to get hello from server")

// NewSession creates a new Netconf session, using the supplied Transport.
func NewSession(ctx context.Context, t Transport, cfg *Config) (Session, error) {

	si := &sesImpl{
		cfg:   cfg,
		t:     t,
		dec:   codec.NewDecoder(t),
		enc:   codec.NewEncoder(t),
		trace: ContextClientTrace(ctx),
	}
	if ti, ok := t.(*tImpl); ok {
		si.target = ti.target
	}

	caps := common.DefaultCapabilities
	if cfg.DisableChunkedCodec {
		caps = common.NoChunkedCodecCapabilities
	}

	// Send hello
	err := si.enc.Encode(&common.HelloMessage{Capabilities: caps})
	if err != nil {
		si.trace.Error("Failed to encode hello", si.target, err)
		si.Close()
		return nil, err
	}

	err = si.waitForServerHello()
	if err != nil {
		si.trace.Error("Failed to receive hello", si.target, err)
		si.Close()
		return nil, err
	}

	if common.PeerSupportsChunkedFraming(caps) && common.PeerSupportsChunkedFraming(si.hello.Capabilities) {
		// Update the codec to use chunked framing from now.
		codec.EnableChunkedFraming(si.dec, si.enc)
	}
	si.trace.HelloDone(si.hello)
	return si, nil
}

func (si *sesImpl) Execute(req common.Request) (reply *common.RPCReply, err error) {

	si.trace.ExecuteStart(req)
	defer func(begin time.Time) {
		si.trace.ExecuteDone(req, reply, err, time.Since(begin))
	}(time.Now())

	si.reqLock.Lock()
	defer si.reqLock.Unlock()

	msg := &common.RPCMessage{MessageID: uuid.NewString(), Union: common.GetUnion(req)}
	if err = si.enc.Encode(msg); err != nil {
		si.trace.Error("Failed to encode rpc", si.target, err)
		return nil, err
	}

	if reply, err = si.readReply(msg.MessageID); err != nil {
		return nil, err
	}
	return reply, mapError(reply)
}

func (si *sesImpl) Close() {
	err := si.t.Close()
	if err != nil {
		si.trace.Error("Session close failed", si.target, err)
	}
}

func (si *sesImpl) ID() uint64 {
	return si.hello.SessionID
}

func (si *sesImpl) ServerCapabilities() []string {
	return si.hello.Capabilities
}

func (si *sesImpl) waitForServerHello() error {

	type result struct {
		hello *common.HelloMessage
		err   error
	}
	hellochan := make(chan result, 1)
	go func() {
		hello := &common.HelloMessage{}
		err := si.dec.Decode(hello)
		hellochan <- result{hello: hello, err: err}
	}()

	select {
	case r := <-hellochan:
		if r.err != nil {
			return errors.Wrap(r.err, "failed to decode hello from server")
		}
		si.hello = r.hello
		return nil
	case <-time.After(time.Duration(si.cfg.SetupTimeoutSecs) * time.Second):
		return ErrNoHello
	}
}

// readReply reads messages until the rpc-reply matching id is found.
// Any other message (e.g. a notification, or a reply to an abandoned request) is discarded.
func (si *sesImpl) readReply(id string) (*common.RPCReply, error) {
	for {
		msg, err := si.dec.ReadMessage()
		if err != nil {
			si.trace.Error("Failed to read reply", si.target, err)
			return nil, err
		}

		name, err := codec.RootName(msg)
		if err != nil {
			si.trace.Error("Failed to parse reply", si.target, err)
			return nil, err
		}
		if name.Local != common.NameRPCReply.Local {
			continue
		}

		reply := &common.RPCReply{}
		if err = xml.Unmarshal(bytes.TrimSpace(msg), reply); err != nil {
			si.trace.Error("DecodeElement token:rpc-reply", si.target, err)
			return nil, err
		}
		if reply.MessageID != "" && reply.MessageID != id {
			si.trace.Error("Discarding reply with unexpected message-id "+reply.MessageID, si.target, nil)
			continue
		}
		reply.RawReply = string(msg)
		return reply, nil
	}
}

// Map an RPC reply to an error, if the reply is either null or contains any RPC error.
func mapError(r *common.RPCReply) (err error) {
	if r == nil {
		err = io.ErrUnexpectedEOF
	} else if r.Errors != nil {
		for i := 0; i < len(r.Errors); i++ {
			rpcErr := r.Errors[i]
			if rpcErr.Severity == "error" {
				err = &rpcErr
				break
			}
		}
	}
	return
}
