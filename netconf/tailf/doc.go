/*
Package tailf implements the tail-f NSO extensions to NETCONF.

NSO adds a transaction protocol to NETCONF (start-transaction,
prepare-transaction, commit-transaction, abort-transaction) and overrides
edit-config, copy-config and commit with extra parameters that control service
deployment, rollback metadata, transaction ids and inactive configuration.

A typical sequence is:

	lock -> start-transaction -> edit-config -> prepare-transaction -> commit-transaction|abort-transaction -> unlock

Each operation has a builder that validates its options against the protocol
rules and the server capabilities, and produces the request element. Builders
are registered by operation name in a Registry. A Session dispatches built
requests over an ops.OpSession and tracks the transaction state, so an
operation issued out of order is reported before anything is sent.
*/
package tailf
