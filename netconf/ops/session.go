package ops

import (
	"encoding/xml"

	"github.com/damianoneill/nso/netconf/client"
	"github.com/damianoneill/nso/netconf/common"
)

// OpSession represents a Netconf Operations OpSession
type OpSession interface {
	client.Session

	// GetConfigSubtree issues a GET-CONFIG request, with the supplied subtree filter and source, and stores the
	// response in the result, which should be the address of either:
	// - a string, in which case it will hold the response body, or
	// - a struct with xml tags.
	GetConfigSubtree(filter interface{}, source string, result interface{}) error

	// Lock issues a lock request on the target configuration.
	Lock(target string) error

	// Unlock issues an unlock request on the target configuration.
	Unlock(target string) error

	// Discard issues a discard changes request.
	Discard() error

	// CloseSession issues a close session request.
	CloseSession() error

	// KillSession issues a kill session request for the specified session id.
	KillSession(id uint64) error
}

type sImpl struct {
	client.Session
}

// NewSessionFromClient delivers an OpSession that issues requests over an established client session.
func NewSessionFromClient(cs client.Session) OpSession {
	return &sImpl{Session: cs}
}

func (s *sImpl) GetConfigSubtree(filter interface{}, source string, result interface{}) error {
	return s.handleGetRequest(createGetConfigSubtreeRequest(filter, source), result)
}

func (s *sImpl) Lock(target string) error {
	_, err := s.Session.Execute(createLockRequest(target))
	return err
}

func (s *sImpl) Unlock(target string) error {
	_, err := s.Session.Execute(createUnlockRequest(target))
	return err
}

func (s *sImpl) Discard() error {
	_, err := s.Session.Execute(createDiscardRequest())
	return err
}

func (s *sImpl) CloseSession() error {
	_, err := s.Session.Execute(createCloseSessionRequest())
	return err
}

func (s *sImpl) KillSession(id uint64) error {
	_, err := s.Session.Execute(createKillSessionRequest(id))
	return err
}

// Request structs.

// Filter defines a subtree filter.
type Filter struct {
	XMLName xml.Name `xml:"filter"`
	Type    string   `xml:"type,attr"`
	*common.Union
}

// ConfigType defines a datastore reference.
// xml Marshaller will not create self-closing tags (and some devices require it), so the
// datastore element is held as inner xml.
type ConfigType struct {
	Type string `xml:",innerxml"`
}

// GetConfigReq defines a get-config request.
type GetConfigReq struct {
	XMLName xml.Name    `xml:"get-config"`
	Source  *ConfigType `xml:"source"`
	Filter  *Filter
}

// LockReq defines a lock request.
type LockReq struct {
	XMLName xml.Name    `xml:"lock"`
	Target  *ConfigType `xml:"target"`
}

// UnlockReq defines an unlock request.
type UnlockReq struct {
	XMLName xml.Name    `xml:"unlock"`
	Target  *ConfigType `xml:"target"`
}

// DiscardReq defines a discard-changes request.
type DiscardReq struct {
	XMLName xml.Name `xml:"discard-changes"`
}

// CloseSessionReq defines a close-session request.
type CloseSessionReq struct {
	XMLName xml.Name `xml:"close-session"`
}

// KillSessionReq defines a kill-session request.
type KillSessionReq struct {
	XMLName xml.Name `xml:"kill-session"`
	ID      uint64   `xml:"session-id"`
}

func datastore(name string) *ConfigType {
	return &ConfigType{Type: "<" + name + "/>"}
}

func createGetConfigSubtreeRequest(s interface{}, source string) common.Request {
	req := &GetConfigReq{Source: datastore(source)}
	if s != nil {
		req.Filter = &Filter{Type: "subtree", Union: common.GetUnion(s)}
	}
	return req
}

func createLockRequest(target string) *LockReq {
	return &LockReq{Target: datastore(target)}
}

func createUnlockRequest(target string) *UnlockReq {
	return &UnlockReq{Target: datastore(target)}
}

func createDiscardRequest() *DiscardReq {
	return &DiscardReq{}
}

func createKillSessionRequest(id uint64) *KillSessionReq {
	return &KillSessionReq{ID: id}
}

func createCloseSessionRequest() *CloseSessionReq {
	return &CloseSessionReq{}
}

func (s *sImpl) handleGetRequest(req common.Request, result interface{}) error {
	reply, err := s.Session.Execute(req)
	if err != nil {
		return err
	}

	switch target := result.(type) {
	case *string:
		data := &Data{}
		err = xml.Unmarshal([]byte(reply.Data), data)
		*target = data.Content
	default:
		data := &Data{Body: result}
		err = xml.Unmarshal([]byte(reply.Data), data)
	}
	return err
}
