package tailf

import (
	"strings"

	"github.com/damianoneill/nso/netconf/common"

	"github.com/beevik/etree"
)

// TransactionID returns the id NSO reports for a transaction when an operation is issued
// with WithTransactionID.
func TransactionID(reply *common.RPCReply) (string, bool) {
	if reply == nil {
		return "", false
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<reply>" + reply.Data + "</reply>"); err != nil {
		return "", false
	}
	for _, el := range doc.FindElements("//transaction-id") {
		if el.NamespaceURI() == NSWithTransactionID {
			return strings.TrimSpace(el.Text()), true
		}
	}
	return "", false
}
