package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/damianoneill/nso/netconf/tailf"
	"github.com/damianoneill/nso/netconf/testserver"

	assert "github.com/stretchr/testify/require"
)

const cliDryRun = `<dry-run-result xmlns="http://tail-f.com/ns/ncs"><cli><local-node><data>
+ devices device ce0 config description uplink
</data></local-node></cli></dry-run-result>`

func executeRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func serverArgs(ts *testserver.TestNCServer, args ...string) []string {
	return append([]string{
		"--host", "localhost",
		"--port", strconv.Itoa(ts.Port()),
		"--user", testserver.TestUserName,
		"--password", testserver.TestPassword,
		"--timeout", "2s",
	}, args...)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func requestNames(h *testserver.SessionHandler) []string {
	var names []string
	for _, req := range h.Requests() {
		names = append(names, req.Request.XMLName.Local)
	}
	return names
}

func TestOperations(t *testing.T) {

	out, err := executeRootCommand(t, "operations")
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 7)
	assert.Equal(t, "abort-transaction    "+tailf.NSTransactions, lines[0])
	assert.Contains(t, out, "edit-config          "+tailf.NSBase)
}

func TestTxnDryRun(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithDefaultRequestHandler(
		testserver.OperationRequestHandler(map[string]testserver.RequestHandler{
			"prepare-transaction": testserver.BodyRequestHandler(cliDryRun),
		}))
	defer ts.Close()

	payload := writeFile(t, "devices.xml", `<config><devices xmlns="http://tail-f.com/ns/ncs"><device><name>ce0</name></device></devices></config>`)
	out, err := executeRootCommand(t, serverArgs(ts, "txn", "dry-run", "--file", payload, "--no-deploy")...)
	assert.NoError(t, err)
	assert.Equal(t, "local-node:\n+ devices device ce0 config description uplink\n", out)

	h := ts.LastHandler()
	assert.Equal(t, []string{
		"lock", "start-transaction", "edit-config", "prepare-transaction", "abort-transaction", "unlock",
	}, requestNames(h))

	reqs := h.Requests()
	assert.Equal(t, "<target><running/></target>", reqs[0].Request.Body)
	assert.Contains(t, reqs[2].Request.Body, `<config><devices xmlns="http://tail-f.com/ns/ncs">`)
	assert.Equal(t, `<dry-run xmlns="`+tailf.NSNCS+`"><outformat>cli</outformat></dry-run><no-deploy xmlns="`+tailf.NSNCS+`"/>`,
		reqs[3].Request.Body)
}

func TestTxnApply(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithDefaultRequestHandler(
		testserver.OperationRequestHandler(map[string]testserver.RequestHandler{
			"commit-transaction": testserver.BodyRequestHandler(
				`<transaction-id xmlns="http://tail-f.com/ns/netconf/with-transaction-id">1234</transaction-id>`),
		}))
	defer ts.Close()

	payload := writeFile(t, "change.cfg", "devices device ce0 config description uplink")
	out, err := executeRootCommand(t, serverArgs(ts,
		"txn", "apply", "--text", "--file", payload, "--target", "candidate", "--label", "CHG-1", "--with-transaction-id")...)
	assert.NoError(t, err)
	assert.Equal(t, "transaction 1234 committed\n", out)

	h := ts.LastHandler()
	assert.Equal(t, []string{
		"lock", "start-transaction", "edit-config", "prepare-transaction", "commit-transaction", "unlock",
	}, requestNames(h))

	reqs := h.Requests()
	assert.Equal(t, `<target><candidate/></target>`+
		`<label xmlns="`+tailf.NSRollback+`">CHG-1</label>`+
		`<with-inactive xmlns="`+tailf.NSInactive+`"/>`+
		`<config-text><configuration-text>devices device ce0 config description uplink</configuration-text></config-text>`,
		reqs[2].Request.Body)
	assert.Empty(t, reqs[3].Request.Body, "No dry-run when applying")
}

func TestTxnEditFailureAborts(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithDefaultRequestHandler(
		testserver.OperationRequestHandler(map[string]testserver.RequestHandler{
			"edit-config": testserver.FailingRequestHandler,
		}))
	defer ts.Close()

	payload := writeFile(t, "devices.xml", `<config><devices xmlns="http://tail-f.com/ns/ncs"/></config>`)
	_, err := executeRootCommand(t, serverArgs(ts, "txn", "apply", "--file", payload)...)
	assert.Error(t, err)
	assert.Equal(t, "edit config: netconf rpc [error] 'oops'", err.Error())

	assert.Equal(t, []string{
		"lock", "start-transaction", "edit-config", "abort-transaction", "unlock",
	}, requestNames(ts.LastHandler()))
}

func TestTxnInvalidOptionsAreNotSent(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithDefaultRequestHandler(testserver.OkRequestHandler)
	defer ts.Close()

	payload := writeFile(t, "devices.xml", `<config><devices xmlns="http://tail-f.com/ns/ncs"/></config>`)
	_, err := executeRootCommand(t, serverArgs(ts, "txn", "dry-run", "--file", payload, "--outformat", "json", "--no-lock")...)
	assert.ErrorIs(t, err, tailf.ErrInvalidArgument)

	assert.Equal(t, []string{
		"start-transaction", "edit-config", "abort-transaction",
	}, requestNames(ts.LastHandler()))
}

func TestTxnMissingPayload(t *testing.T) {

	_, err := executeRootCommand(t, "txn", "apply", "--file", filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read payload")
}

func TestCommit(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithDefaultRequestHandler(testserver.OkRequestHandler)
	defer ts.Close()

	out, err := executeRootCommand(t, serverArgs(ts, "commit", "--confirmed", "--confirm-timeout", "60", "--label", "nightly")...)
	assert.NoError(t, err)
	assert.Equal(t, "committed\n", out)

	req := ts.LastHandler().LastReq()
	assert.Equal(t, "commit", req.Request.XMLName.Local)
	assert.Equal(t, `<confirmed/><confirm-timeout>60</confirm-timeout><label xmlns="`+tailf.NSRollback+`">nightly</label>`,
		req.Request.Body)
}

func TestCommitInvalidCombination(t *testing.T) {

	_, err := executeRootCommand(t, "--port", "0", "commit", "--persist", "token", "--persist-id", "token")
	assert.ErrorIs(t, err, tailf.ErrInvalidArgument)
}

func TestCommitUnsupported(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithCapabilities([]string{"urn:ietf:params:netconf:base:1.1"})
	defer ts.Close()

	_, err := executeRootCommand(t, serverArgs(ts, "commit")...)
	assert.ErrorIs(t, err, tailf.ErrUnsupportedCapability)
}

func TestConnectionFromEnvironment(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithDefaultRequestHandler(testserver.OkRequestHandler)
	defer ts.Close()

	t.Setenv("NSOCTL_PORT", strconv.Itoa(ts.Port()))
	t.Setenv("NSOCTL_USER", testserver.TestUserName)
	t.Setenv("NSOCTL_PASSWORD", testserver.TestPassword)
	t.Setenv("NSOCTL_LOG_LEVEL", "debug")

	out, err := executeRootCommand(t, "commit")
	assert.NoError(t, err)
	assert.Equal(t, "committed\n", out)
}

func TestConnectionFromConfigFile(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithDefaultRequestHandler(testserver.OkRequestHandler)
	defer ts.Close()

	cfg := writeFile(t, "nsoctl.yaml", "host: localhost\n"+
		"port: "+strconv.Itoa(ts.Port())+"\n"+
		"user: "+testserver.TestUserName+"\n"+
		"password: "+testserver.TestPassword+"\n"+
		"log-format: json\n")

	out, err := executeRootCommand(t, "--config", cfg, "commit")
	assert.NoError(t, err)
	assert.Equal(t, "committed\n", out)

	_, err = executeRootCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "commit")
	assert.Error(t, err)
}

func TestConnectionFailure(t *testing.T) {

	_, err := executeRootCommand(t, "--port", "0", "--timeout", "1s", "commit")
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "connect: "), err.Error())
}

func TestLoggingFlags(t *testing.T) {

	_, err := executeRootCommand(t, "--log-format", "xml", "operations")
	assert.Error(t, err)

	_, err = executeRootCommand(t, "--log-level", "loud", "operations")
	assert.Error(t, err)
}

func TestKnownHosts(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	hosts := writeFile(t, "known_hosts", "")
	_, err := executeRootCommand(t, serverArgs(ts, "--known-hosts", hosts, "commit")...)
	assert.Error(t, err, "Unknown host key should be rejected")

	_, err = executeRootCommand(t, serverArgs(ts, "--known-hosts", filepath.Join(t.TempDir(), "none"), "commit")...)
	assert.Error(t, err)
}
