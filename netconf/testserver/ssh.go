package testserver

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// ChannelHandler serves an accepted ssh channel once the client has requested a subsystem.
type ChannelHandler func(ch ssh.Channel)

// SSHServer represents a test SSH Server
type SSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	handler  ChannelHandler
}

// NewSSHServer delivers a new test SSH Server, with a handler that echoes lines sent on a subsystem channel,
// prefixed with "GOT:".
// The server implements password authentication with the given credentials.
func NewSSHServer(tctx assert.TestingT, uname, password string) *SSHServer {
	return NewSSHServerHandler(tctx, uname, password, echoLines)
}

// NewSSHServerHandler delivers a new test SSH Server that serves subsystem channels with the supplied handler.
func NewSSHServerHandler(tctx assert.TestingT, uname, password string, handler ChannelHandler) *SSHServer {

	listener, err := net.Listen("tcp", "localhost:0")
	assert.NoError(tctx, err, "Listen failed")

	ts := &SSHServer{listener: listener, config: newSSHServerConfig(tctx, uname, password), handler: handler}
	go ts.acceptConnections()

	return ts
}

// Port delivers the tcp port number on which the server is listening.
func (ts *SSHServer) Port() int {
	return ts.listener.Addr().(*net.TCPAddr).Port
}

// Target delivers the host:port address of the server.
func (ts *SSHServer) Target() string {
	return fmt.Sprintf("localhost:%d", ts.Port())
}

// Close stops the server accepting further connections.
func (ts *SSHServer) Close() {
	_ = ts.listener.Close()
}

func (ts *SSHServer) acceptConnections() {
	for {
		nConn, err := ts.listener.Accept()
		if err != nil {
			return
		}
		go ts.serveConnection(nConn)
	}
}

func (ts *SSHServer) serveConnection(nConn net.Conn) {
	_, chch, reqch, err := ssh.NewServerConn(nConn, ts.config)
	if err != nil {
		_ = nConn.Close()
		return
	}

	go ssh.DiscardRequests(reqch)

	for newChannel := range chch {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChannel.Accept()
		if err != nil {
			return
		}

		// Handle the "subsystem" request.
		subsystem := make(chan struct{})
		go func(in <-chan *ssh.Request) {
			started := false
			for req := range in {
				ok := req.Type == "subsystem" && !started
				_ = req.Reply(ok, nil)
				if ok {
					started = true
					close(subsystem)
				}
			}
		}(requests)

		go func() {
			<-subsystem
			ts.handler(ch)
		}()
	}
}

func echoLines(ch ssh.Channel) {
	defer ch.Close()
	chReader := bufio.NewReader(ch)
	chWriter := bufio.NewWriter(ch)
	for {
		input, err := chReader.ReadString('\n')
		if err != nil {
			return
		}
		if _, err = chWriter.WriteString(fmt.Sprintf("GOT:%s", input)); err != nil {
			return
		}
		_ = chWriter.Flush()
	}
}

func newSSHServerConfig(tctx assert.TestingT, uname, password string) *ssh.ServerConfig {
	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == uname && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	assert.NoError(tctx, err, "Failed to generate host key")
	signer, err := ssh.NewSignerFromKey(key)
	assert.NoError(tctx, err, "Failed to create host key signer")
	config.AddHostKey(signer)
	return config
}
