package tailf

import (
	"testing"

	"github.com/beevik/etree"
	assert "github.com/stretchr/testify/require"
)

func serialize(t *testing.T, node *etree.Element) string {
	t.Helper()
	s, err := Serialize(node)
	assert.NoError(t, err)
	return s
}

func TestEncodeServiceCommitParams(t *testing.T) {

	node := newElement("req", NSBase)
	assert.NoError(t, EncodeServiceCommitParams(node, true, ReconcileKeepNonServiceConfig))
	assert.Equal(t, `<req xmlns="`+NSBase+`">`+
		`<no-deploy xmlns="`+NSNCS+`"/>`+
		`<reconcile xmlns="`+NSNCS+`"><keep-non-service-config/></reconcile>`+
		`</req>`, serialize(t, node))

	node = newElement("req", NSBase)
	assert.NoError(t, EncodeServiceCommitParams(node, false, ReconcileNone))
	assert.Empty(t, node.ChildElements(), "Nothing should be added for absent values")
}

func TestEncodeServiceCommitParamsInvalidReconcile(t *testing.T) {

	node := newElement("req", NSBase)
	err := EncodeServiceCommitParams(node, true, Reconcile("keep-everything"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "keep-everything")
	assert.Empty(t, node.ChildElements(), "Node should not be modified on failure")
}

func TestEncodeRollbackMetadata(t *testing.T) {

	node := newElement("req", NSBase)
	EncodeRollbackMetadata(node, "release-42", "")
	assert.Equal(t, `<req xmlns="`+NSBase+`"><label xmlns="`+NSRollback+`">release-42</label></req>`, serialize(t, node))

	node = newElement("req", NSBase)
	EncodeRollbackMetadata(node, "", "a comment")
	assert.Equal(t, `<req xmlns="`+NSBase+`"><comment xmlns="`+NSRollback+`">a comment</comment></req>`, serialize(t, node))

	node = newElement("req", NSBase)
	EncodeRollbackMetadata(node, "l", "c")
	children := node.ChildElements()
	assert.Len(t, children, 2)
	assert.Equal(t, "label", children[0].Tag)
	assert.Equal(t, "comment", children[1].Tag)

	node = newElement("req", NSBase)
	EncodeRollbackMetadata(node, "", "")
	assert.Empty(t, node.ChildElements())
}

func TestEncodeMarkers(t *testing.T) {

	node := newElement("req", NSBase)
	EncodeWithTransactionID(node, false)
	EncodeWithInactive(node, false)
	assert.Empty(t, node.ChildElements())

	EncodeWithTransactionID(node, true)
	EncodeWithInactive(node, true)
	assert.Equal(t, `<req xmlns="`+NSBase+`">`+
		`<with-transaction-id xmlns="`+NSWithTransactionID+`"/>`+
		`<with-inactive xmlns="`+NSInactive+`"/>`+
		`</req>`, serialize(t, node))
}

func TestEncodersAreOrderIndependent(t *testing.T) {

	a := newElement("req", NSBase)
	EncodeWithTransactionID(a, true)
	EncodeRollbackMetadata(a, "l", "")

	b := newElement("req", NSBase)
	EncodeRollbackMetadata(b, "l", "")
	EncodeWithTransactionID(b, true)

	tags := func(n *etree.Element) (s []string) {
		for _, c := range n.ChildElements() {
			s = append(s, c.Tag)
		}
		return
	}
	assert.ElementsMatch(t, tags(a), tags(b))
}

func TestEncodeBundleIsRepeatable(t *testing.T) {

	p := ExtensionParams{
		NoDeploy:          true,
		Reconcile:         ReconcileDiscardNonServiceConfig,
		RollbackLabel:     "release-42",
		RollbackComment:   "uplinks",
		WithTransactionID: true,
	}
	encode := func() string {
		node := newElement("req", NSBase)
		assert.NoError(t, EncodeServiceCommitParams(node, p.NoDeploy, p.Reconcile))
		EncodeRollbackMetadata(node, p.RollbackLabel, p.RollbackComment)
		EncodeWithTransactionID(node, p.WithTransactionID)
		EncodeWithInactive(node, true)
		return serialize(t, node)
	}

	first := encode()
	assert.Equal(t, `<req xmlns="`+NSBase+`">`+
		`<no-deploy xmlns="`+NSNCS+`"/>`+
		`<reconcile xmlns="`+NSNCS+`"><discard-non-service-config/></reconcile>`+
		`<label xmlns="`+NSRollback+`">release-42</label>`+
		`<comment xmlns="`+NSRollback+`">uplinks</comment>`+
		`<with-transaction-id xmlns="`+NSWithTransactionID+`"/>`+
		`<with-inactive xmlns="`+NSInactive+`"/>`+
		`</req>`, first)
	assert.Equal(t, first, encode(), "Encoding the same bundle twice should give identical subtrees")

	assert.Equal(t, build(t, BuildCommit, allCaps, WithParams(p)), build(t, BuildCommit, allCaps, WithParams(p)))
}

func TestEncodeDryRun(t *testing.T) {

	node := newElement("req", NSTransactions)
	assert.NoError(t, EncodeDryRun(node, nil))
	assert.Empty(t, node.ChildElements())

	assert.NoError(t, EncodeDryRun(node, &DryRun{Format: FormatCLI, Reverse: true}))
	assert.Equal(t, `<req xmlns="`+NSTransactions+`">`+
		`<dry-run xmlns="`+NSNCS+`"><outformat>cli</outformat><reverse/></dry-run>`+
		`</req>`, serialize(t, node))
}

func TestEncodeDryRunInvalid(t *testing.T) {

	for _, dr := range []DryRun{
		{},
		{Reverse: true},
		{Format: "json"},
		{Format: "json", Reverse: true},
	} {
		node := newElement("req", NSTransactions)
		err := EncodeDryRun(node, &dr)
		assert.ErrorIs(t, err, ErrInvalidArgument, "Expected %+v to be rejected", dr)
		assert.Empty(t, node.ChildElements())
	}

	err := EncodeDryRun(newElement("req", NSTransactions), &DryRun{Reverse: true})
	assert.Contains(t, err.Error(), "reverse requires an output format")
}
