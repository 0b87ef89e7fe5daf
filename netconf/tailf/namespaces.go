package tailf

import "github.com/damianoneill/nso/netconf/common"

// Namespaces used by the NSO extensions.
const (
	NSBase              = common.NetconfNS
	NSTransactions      = "http://tail-f.com/ns/netconf/transactions/1.0"
	NSNCS               = "http://tail-f.com/ns/ncs"
	NSRollback          = "http://tail-f.com/ns/rollback"
	NSWithTransactionID = "http://tail-f.com/ns/netconf/with-transaction-id"
	NSInactive          = "http://tail-f.com/ns/netconf/inactive/1.0"
)
