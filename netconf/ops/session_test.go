package ops

import (
	"encoding/xml"
	"errors"
	"testing"

	"github.com/damianoneill/nso/netconf/common"
	"github.com/damianoneill/nso/netconf/mocks"

	assert "github.com/stretchr/testify/require"
)

type Element struct {
	XMLName xml.Name `xml:"element"`
	Attr1   string   `xml:"attr1,attr"`
}

func TestGetConfigSubtreeToString(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createGetConfigSubtreeRequest(`<subtree-element/>`, RunningCfg)).Return(&common.RPCReply{Data: `<data><element attr1="ABC"/></data>`}, nil)

	var result string
	err := ncs.GetConfigSubtree(`<subtree-element/>`, RunningCfg, &result)
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, `<element attr1="ABC"/>`, result, "Reply should contain response data")
}

func TestGetConfigSubtreeToStruct(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createGetConfigSubtreeRequest(`<subtree-element/>`, RunningCfg)).Return(&common.RPCReply{Data: `<data><element attr1="ABC"/></data>`}, nil)

	var result = &Element{}
	err := ncs.GetConfigSubtree(`<subtree-element/>`, RunningCfg, result)
	assert.NoError(t, err, "Not expecting call to fail")
	assert.Equal(t, `ABC`, result.Attr1, "Reply should contain response data")
}

func TestGetConfigSubtreeExecuteError(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createGetConfigSubtreeRequest(nil, CandidateCfg)).Return(nil, errors.New("failed"))

	var result string
	err := ncs.GetConfigSubtree(nil, CandidateCfg, &result)
	assert.Error(t, err, "Expecting call to fail")
}

func TestGetConfigRequestMarshal(t *testing.T) {

	b, err := xml.Marshal(createGetConfigSubtreeRequest(`<devices/>`, RunningCfg))
	assert.NoError(t, err)
	assert.Equal(t, `<get-config><source><running/></source><filter type="subtree"><devices/></filter></get-config>`, string(b))

	b, err = xml.Marshal(createGetConfigSubtreeRequest(nil, RunningCfg))
	assert.NoError(t, err)
	assert.Equal(t, `<get-config><source><running/></source></get-config>`, string(b))
}

func TestLock(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createLockRequest(CandidateCfg)).Return(&common.RPCReply{}, nil)

	assert.NoError(t, ncs.Lock(CandidateCfg), "Not expecting lock to fail")

	b, _ := xml.Marshal(createLockRequest(CandidateCfg))
	assert.Equal(t, `<lock><target><candidate/></target></lock>`, string(b))
}

func TestLockFailure(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createLockRequest(RunningCfg)).Return(nil, &common.RPCError{Severity: "error", Message: "lock-denied"})

	err := ncs.Lock(RunningCfg)
	assert.Error(t, err, "Expecting lock to fail")
	assert.Equal(t, "netconf rpc [error] 'lock-denied'", err.Error())
}

func TestUnlock(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createUnlockRequest(CandidateCfg)).Return(&common.RPCReply{}, nil)

	assert.NoError(t, ncs.Unlock(CandidateCfg), "Not expecting unlock to fail")

	b, _ := xml.Marshal(createUnlockRequest(CandidateCfg))
	assert.Equal(t, `<unlock><target><candidate/></target></unlock>`, string(b))
}

func TestDiscard(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createDiscardRequest()).Return(&common.RPCReply{}, nil)

	assert.NoError(t, ncs.Discard(), "Not expecting discard to fail")
}

func TestCloseSession(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createCloseSessionRequest()).Return(&common.RPCReply{}, nil)
	mcli.On("Close")

	assert.NoError(t, ncs.CloseSession(), "Not expecting close-session to fail")
	ncs.Close()
}

func TestKillSession(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Execute", createKillSessionRequest(uint64(99))).Return(&common.RPCReply{}, nil)

	assert.NoError(t, ncs.KillSession(99), "Not expecting kill-session to fail")

	b, _ := xml.Marshal(createKillSessionRequest(99))
	assert.Equal(t, `<kill-session><session-id>99</session-id></kill-session>`, string(b))
}

func TestDelegatesToClient(t *testing.T) {

	ncs, mcli := newOpsSessionWithMockClient(t)
	mcli.On("ID").Return(uint64(5))
	mcli.On("ServerCapabilities").Return([]string{common.CapBase10})

	assert.Equal(t, uint64(5), ncs.ID())
	assert.Equal(t, []string{common.CapBase10}, ncs.ServerCapabilities())
}

func newOpsSessionWithMockClient(t *testing.T) (OpSession, *mocks.Session) {
	mcli := mocks.NewSession(t)
	return NewSessionFromClient(mcli), mcli
}
