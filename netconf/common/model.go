package common

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Defines structs representing netconf messages.

// Request represents the body of a Netconf RPC request.
// A string is sent verbatim as the content of the rpc element, any other value is marshalled.
type Request interface{}

// HelloMessage defines the message sent/received during session negotiation.
type HelloMessage struct {
	XMLName      xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 hello"`
	Capabilities []string `xml:"capabilities>capability"`
	SessionID    uint64   `xml:"session-id,omitempty"`
}

// RPCMessage defines an rpc request message
type RPCMessage struct {
	XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc"`
	MessageID string   `xml:"message-id,attr"`
	*Union
}

// RPCReply defines an rpc reply message
type RPCReply struct {
	XMLName   xml.Name   `xml:"rpc-reply"`
	Errors    []RPCError `xml:"rpc-error,omitempty"`
	Data      string     `xml:",innerxml"`
	Ok        bool       `xml:",omitempty"`
	RawReply  string     `xml:"-"`
	MessageID string     `xml:"message-id,attr"`
}

// RPCError defines an error reply to a RPC request
type RPCError struct {
	Type     string `xml:"error-type"`
	Tag      string `xml:"error-tag"`
	Severity string `xml:"error-severity"`
	Path     string `xml:"error-path"`
	Message  string `xml:"error-message"`
	Info     string `xml:",innerxml"`
}

// Error generates a string representation of the RPC error
func (re *RPCError) Error() string {
	return fmt.Sprintf("netconf rpc [%s] '%s'", re.Severity, re.Message)
}

// Union carries either a raw xml body or a value to be marshalled.
type Union struct {
	ValueStr interface{}
	ValueXML string `xml:",innerxml"`
}

// GetUnion wraps a request body so it can be embedded in an rpc message.
func GetUnion(s interface{}) *Union {
	switch request := s.(type) {
	case string:
		return &Union{ValueXML: request}
	default:
		return &Union{ValueStr: request}
	}
}

// DefaultCapabilities sets the default capabilities of the client library
var DefaultCapabilities = []string{
	CapBase10,
	CapBase11,
}

// NoChunkedCodecCapabilities omits the chunked codec capability.
var NoChunkedCodecCapabilities = []string{
	CapBase10,
}

// Define xml names for different netconf messages.
var (
	NameHello    = xml.Name{Space: NetconfNS, Local: "hello"}
	NameRPC      = xml.Name{Space: NetconfNS, Local: "rpc"}
	NameRPCReply = xml.Name{Space: NetconfNS, Local: "rpc-reply"}
)

// Define netconf URNs.
const (
	NetconfNS       = "urn:ietf:params:xml:ns:netconf:base:1.0"
	NetconfNotifyNS = "urn:ietf:params:xml:ns:netconf:notification:1.0"
	CapBase10       = "urn:ietf:params:netconf:base:1.0"
	CapBase11       = "urn:ietf:params:netconf:base:1.1"

	CapCandidate       = "urn:ietf:params:netconf:capability:candidate:1.0"
	CapConfirmedCommit = "urn:ietf:params:netconf:capability:confirmed-commit:1.1"
	CapRollbackOnError = "urn:ietf:params:netconf:capability:rollback-on-error:1.0"
	CapValidate        = "urn:ietf:params:netconf:capability:validate:1.1"
	CapURL             = "urn:ietf:params:netconf:capability:url:1.0"
)

// Capability shorthands, as used in RFC 6241 (e.g. ":candidate").
const (
	Candidate       = ":candidate"
	ConfirmedCommit = ":confirmed-commit"
	RollbackOnError = ":rollback-on-error"
	Validate        = ":validate"
	URL             = ":url"
)

// PeerSupportsChunkedFraming returns true if capability list indicates support for chunked framing.
func PeerSupportsChunkedFraming(caps []string) bool {
	for _, capability := range caps {
		if capability == CapBase11 {
			return true
		}
	}
	return false
}

// PeerSupports returns true if the capability list contains any version of the capability
// identified by shorthand (e.g. ":validate" matches both validate:1.0 and validate:1.1).
// Capability parameters (?scheme=...) are ignored.
func PeerSupports(caps []string, shorthand string) bool {
	name := strings.TrimPrefix(shorthand, ":")
	if name == "" {
		return false
	}
	for _, capability := range caps {
		if i := strings.IndexByte(capability, '?'); i >= 0 {
			capability = capability[:i]
		}
		if strings.HasPrefix(capability, "urn:ietf:params:netconf:capability:"+name+":") ||
			strings.HasPrefix(capability, "urn:ietf:params:netconf:"+name+":") {
			return true
		}
	}
	return false
}
