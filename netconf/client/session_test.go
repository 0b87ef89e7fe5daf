package client

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/damianoneill/nso/netconf/common"
	"github.com/damianoneill/nso/netconf/common/codec"
	"github.com/damianoneill/nso/netconf/testserver"

	assert "github.com/stretchr/testify/require"
)

func TestNewSessionWithChunkedEncoding(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()
	sh := ts.SessionHandler(ncs.ID())

	assert.NotNil(t, ncs, "Session should be non-nil")
	assert.Equal(t, uint64(1), ncs.ID(), "Session id not defined correctly")
	assert.Contains(t, ncs.ServerCapabilities(), common.CapBase10, "Failed to retrieve expected capabilities")

	assert.True(t, sh.WaitStart(time.Second))
	assert.NotNil(t, sh.ClientHello(), "Should have sent hello")
	assert.Equal(t, common.DefaultCapabilities, sh.ClientHello().Capabilities, "Did not send expected client capabilities")
}

func TestExecute(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()

	sh := ts.SessionHandler(ncs.ID())
	assert.Nil(t, sh.LastReq(), "No requests should have been executed")

	reply, err := ncs.Execute(common.Request(`<get><response/></get>`))
	assert.NoError(t, err, "Not expecting exec to fail")
	assert.NotNil(t, reply, "Reply should be non-nil")
	assert.Equal(t, `<data><response/></data>`, reply.Data, "Reply should contain response data")
	assert.Contains(t, reply.RawReply, `<rpc-reply`, "Raw reply should be retained")
	assert.NotEmpty(t, reply.MessageID, "Reply should carry the request message id")
	assert.Equal(t, 1, sh.ReqCount(), "Expected request count to be 1")
	assert.Equal(t, "get", sh.LastReq().Request.XMLName.Local, "Expected GET request")
	assert.Equal(t, "<response/>", sh.LastReq().Request.Body, "Expected request body")
	assert.Equal(t, reply.MessageID, sh.LastReq().MessageID)
}

func TestExecuteWithStruct(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()

	sh := ts.SessionHandler(ncs.ID())

	type req struct {
		XMLName xml.Name `xml:"get"`
		Body    string   `xml:"body"`
	}

	reply, err := ncs.Execute(common.Request(&req{}))
	assert.NoError(t, err, "Not expecting exec to fail")
	assert.NotNil(t, reply, "Reply should be non-nil")
	assert.Equal(t, `<data><body></body></data>`, reply.Data, "Reply should contain response data")
	assert.Equal(t, 1, sh.ReqCount(), "Expected request count to be 1")
	assert.Equal(t, "get", sh.LastReq().Request.XMLName.Local, "Expected GET request")
	assert.Equal(t, "<body></body>", sh.LastReq().Request.Body, "Expected request body")
}

func TestExecuteWithFailingRequest(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t).WithRequestHandler(testserver.FailingRequestHandler)
	defer ts.Close()
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()

	reply, err := ncs.Execute(common.Request(`<get><response/></get>`))
	assert.Error(t, err, "Expecting exec to fail")
	assert.Equal(t, "netconf rpc [error] 'oops'", err.Error(), "Expected error")
	assert.NotNil(t, reply, "Reply should be non-nil")

	rpcErr, ok := err.(*common.RPCError)
	assert.True(t, ok, "Expected an rpc error")
	assert.Equal(t, "operation-failed", rpcErr.Tag)
}

func TestExecuteFailure(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t)
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()

	// Close the transport - to force error when we try to use it.
	ts.Close()
	time.Sleep(time.Millisecond * time.Duration(250))

	reply, err := ncs.Execute(common.Request(`<get><response/></get>`))
	assert.Error(t, err, "Expecting exec to fail")
	assert.Nil(t, reply, "Reply should be nil")
}

func TestExecuteWhenServerCloses(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t).WithRequestHandler(testserver.CloseRequestHandler)
	defer ts.Close()
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()

	reply, err := ncs.Execute(common.Request(`<get/>`))
	assert.Equal(t, io.EOF, err, "Expected EOF error")
	assert.Nil(t, reply, "Reply should be nil")
}

func TestNewSessionWithEndOfMessageEncoding(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t).WithCapabilities([]string{common.CapBase10})
	defer ts.Close()
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()

	assert.False(t, common.PeerSupportsChunkedFraming(ncs.(*sesImpl).hello.Capabilities), "Server not expected to support chunked framing")

	reply, _ := ncs.Execute(common.Request(`<get><response/></get>`))
	assert.NotNil(t, reply, "Reply should be non-nil")
	assert.Equal(t, `<data><response/></data>`, reply.Data, "Reply should contain response data")
}

func TestNewSessionWithNoChunkedCodec(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()
	ncs := newNCClientSessionWithConfig(t, ts, &Config{DisableChunkedCodec: true})
	defer ncs.Close()

	sh := ts.SessionHandler(ncs.ID())
	assert.True(t, sh.WaitStart(time.Second), "Expected client hello")
	assert.NotNil(t, sh.ClientHello(), "Should have sent hello")
	assert.Equal(t, common.NoChunkedCodecCapabilities, sh.ClientHello().Capabilities)

	reply, err := ncs.Execute(common.Request(`<get><response/></get>`))
	assert.NoError(t, err, "Not expecting exec to fail")
	assert.Equal(t, `<data><response/></data>`, reply.Data, "Reply should contain response data")
	assert.Equal(t, 1, sh.ReqCount(), "Expected request count to be 1")
}

func TestConcurrentExecute(t *testing.T) {

	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()
	ncs := newNCClientSession(t, ts)
	defer ncs.Close()

	var wg sync.WaitGroup
	for r := 0; r < 10; r++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			request := fmt.Sprintf(`<get><Id_%d/></get>`, id)
			replybody := fmt.Sprintf(`<data><Id_%d/></data>`, id)
			for i := 0; i < 20; i++ {
				reply, err := ncs.Execute(common.Request(request))
				assert.NoError(t, err, "Not expecting exec to fail")
				assert.Equal(t, replybody, reply.Data, "Reply should contain response data")
			}
		}(r)
	}
	wg.Wait()
	sh := ts.SessionHandler(ncs.ID())
	assert.Equal(t, 200, sh.ReqCount(), "Unexpected request count")
}

func TestMapError(t *testing.T) {

	assert.Equal(t, io.ErrUnexpectedEOF, mapError(nil))
	assert.NoError(t, mapError(&common.RPCReply{}))
	assert.NoError(t, mapError(&common.RPCReply{Errors: []common.RPCError{{Severity: "warning", Message: "careful"}}}))

	err := mapError(&common.RPCReply{Errors: []common.RPCError{
		{Severity: "warning", Message: "careful"},
		{Severity: "error", Message: "broken"},
	}})
	assert.Equal(t, "netconf rpc [error] 'broken'", err.Error())
}

// pipeTransport connects a session to an in-memory peer.
type pipeTransport struct {
	io.Reader
	io.Writer
	closed bool
}

func (p *pipeTransport) Close() error {
	p.closed = true
	return nil
}

func TestReadReplySkipsUnrelatedMessages(t *testing.T) {

	peerR, clientW := io.Pipe()
	clientR, peerW := io.Pipe()
	tr := &pipeTransport{Reader: clientR, Writer: clientW}

	peerDec := codec.NewDecoder(peerR)
	peerEnc := codec.NewEncoder(peerW)

	go func() {
		_, _ = peerDec.ReadMessage() // client hello
		_ = peerEnc.Encode(&common.HelloMessage{Capabilities: []string{common.CapBase10}, SessionID: 7})

		msg, _ := peerDec.ReadMessage()
		id := messageID(string(msg))
		_ = peerEnc.WriteMessage([]byte(`<notification xmlns="urn:ietf:params:xml:ns:netconf:notification:1.0"><eventTime>now</eventTime></notification>`))
		_ = peerEnc.WriteMessage([]byte(`<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="stale"><ok/></rpc-reply>`))
		_ = peerEnc.WriteMessage([]byte(`<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="` + id + `"><data>mine</data></rpc-reply>`))
	}()

	ncs, err := NewSession(context.Background(), tr, &Config{SetupTimeoutSecs: 1})
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), ncs.ID())

	reply, err := ncs.Execute(`<get/>`)
	assert.NoError(t, err)
	assert.Equal(t, `<data>mine</data>`, reply.Data)
}

func TestNewSessionNoHello(t *testing.T) {

	clientR, _ := io.Pipe()
	tr := &pipeTransport{Reader: clientR, Writer: io.Discard}

	ncs, err := NewSession(context.Background(), tr, &Config{SetupTimeoutSecs: 1})
	assert.Equal(t, ErrNoHello, err)
	assert.Nil(t, ncs)
	assert.True(t, tr.closed, "Transport should be closed on setup failure")
}

func TestNewSessionBadHello(t *testing.T) {

	tr := &pipeTransport{Reader: strings.NewReader(`<hello><capabilities>]]>]]>`), Writer: io.Discard}

	ncs, err := NewSession(context.Background(), tr, &Config{SetupTimeoutSecs: 1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode hello from server")
	assert.Nil(t, ncs)
	assert.True(t, tr.closed, "Transport should be closed on setup failure")
}

func messageID(rpc string) string {
	const attr = `message-id="`
	i := strings.Index(rpc, attr)
	if i < 0 {
		return ""
	}
	rest := rpc[i+len(attr):]
	return rest[:strings.IndexByte(rest, '"')]
}

func newNCClientSession(t *testing.T, ts *testserver.TestNCServer) Session {
	return newNCClientSessionWithConfig(t, ts, DefaultConfig)
}

func newNCClientSessionWithConfig(t *testing.T, ts *testserver.TestNCServer, cfg *Config) Session {
	ncs, err := NewRPCSessionWithConfig(context.Background(), ts.ClientConfig(), ts.Target(), cfg)
	assert.NoError(t, err, "Failed to create session")
	return ncs
}
