package tailf

import (
	"encoding/xml"

	"github.com/damianoneill/nso/netconf/common"
)

// DryRunResult is the content of a reply to prepare-transaction with a dry-run.
// Exactly one of the outputs is set, according to the requested format.
type DryRunResult struct {
	XMLName xml.Name      `xml:"http://tail-f.com/ns/ncs dry-run-result"`
	CLI     *DryRunOutput `xml:"cli"`
	XML     *DryRunOutput `xml:"result-xml"`
	Native  *DryRunOutput `xml:"native"`
}

// DryRunOutput holds the changes to NSO's own configuration and to each device.
type DryRunOutput struct {
	LocalNode *DryRunChanges  `xml:"local-node"`
	Devices   []DryRunChanges `xml:"device"`
}

// DryRunChanges holds the changes to one node. Name is empty for the local node.
type DryRunChanges struct {
	Name string     `xml:"name"`
	Data DryRunData `xml:"data"`
}

// DryRunData holds the changes both as text (cli and native formats) and as raw XML (xml format).
type DryRunData struct {
	Text    string `xml:",chardata"`
	Content string `xml:",innerxml"`
}

// Output returns whichever output the server returned.
func (r *DryRunResult) Output() *DryRunOutput {
	switch {
	case r.CLI != nil:
		return r.CLI
	case r.XML != nil:
		return r.XML
	default:
		return r.Native
	}
}

// ParseDryRunResult decodes the dry-run-result of a prepare-transaction reply.
func ParseDryRunResult(reply *common.RPCReply) (*DryRunResult, error) {
	if reply == nil {
		return nil, malformedPayload(OpPrepareTransaction, nil, "no reply")
	}
	result := &DryRunResult{}
	if err := xml.Unmarshal([]byte(reply.Data), result); err != nil {
		return nil, malformedPayload(OpPrepareTransaction, err, "reply has no dry-run-result")
	}
	return result, nil
}
