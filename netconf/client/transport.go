package client

import (
	"context"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// The Secure Transport layer provides a communication path between
// the client and server.  NETCONF can be layered over any
// transport protocol that provides a set of basic requirements.

// Transport interface defines what characteristics make up a NETCONF transport
// layer object.
type Transport interface {
	io.ReadWriteCloser
}

type tImpl struct {
	reader      io.Reader
	writeCloser io.WriteCloser
	sshSession  *ssh.Session
	sshClient   *ssh.Client
	trace       *ClientTrace
	target      string
}

// NewSSHTransport creates a new SSH transport, connecting to the target with the supplied client configuration
// and requesting the specified subsystem.
func NewSSHTransport(ctx context.Context, clientConfig *ssh.ClientConfig, target, subsystem string) (rt Transport, err error) {

	impl := &tImpl{target: target, trace: ContextClientTrace(ctx)}

	impl.trace.ConnectStart(target)
	defer func(begin time.Time) {
		impl.trace.ConnectDone(target, err, time.Since(begin))
	}(time.Now())

	defer func() {
		if err != nil {
			_ = impl.Close()
		}
	}()

	if impl.sshClient, err = impl.dial(ctx, clientConfig); err != nil {
		return nil, err
	}

	if impl.sshSession, err = impl.sshClient.NewSession(); err != nil {
		return nil, err
	}

	if err = impl.sshSession.RequestSubsystem(subsystem); err != nil {
		return nil, err
	}

	var reader io.Reader
	if reader, err = impl.sshSession.StdoutPipe(); err != nil {
		return nil, err
	}
	impl.reader = &traceReader{r: reader, trace: impl.trace}

	var writer io.WriteCloser
	if writer, err = impl.sshSession.StdinPipe(); err != nil {
		return nil, err
	}
	impl.writeCloser = &traceWriter{w: writer, trace: impl.trace}

	return impl, nil
}

func (t *tImpl) dial(ctx context.Context, clientConfig *ssh.ClientConfig) (client *ssh.Client, err error) {
	t.trace.DialStart(clientConfig, t.target)
	defer func(begin time.Time) {
		t.trace.DialDone(clientConfig, t.target, err, time.Since(begin))
	}(time.Now())

	dialer := &net.Dialer{Timeout: clientConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.target)
	if err != nil {
		return nil, err
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, t.target, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (t *tImpl) Read(p []byte) (n int, err error) {
	return t.reader.Read(p)
}

func (t *tImpl) Write(p []byte) (n int, err error) {
	return t.writeCloser.Write(p)
}

// Close closes all session resources in the following order:
//
//  1. stdin pipe
//  2. SSH session
//  3. SSH client
//
// Errors are returned with priority matching the same order.
func (t *tImpl) Close() (err error) {

	defer func() {
		t.trace.ConnectionClosed(t.target, err)
	}()

	var (
		writeCloseErr      error
		sshSessionCloseErr error
	)

	if t.writeCloser != nil {
		writeCloseErr = t.writeCloser.Close()
	}

	if t.sshSession != nil {
		sshSessionCloseErr = t.sshSession.Close()
	}

	if t.sshClient != nil {
		err = t.sshClient.Close()
	}

	if err == nil {
		err = writeCloseErr
	}

	if err == nil {
		err = sshSessionCloseErr
	}

	return err
}

type traceReader struct {
	r     io.Reader
	trace *ClientTrace
}

func (tr *traceReader) Read(p []byte) (c int, err error) {
	tr.trace.ReadStart(p)
	defer func(begin time.Time) {
		tr.trace.ReadDone(p, c, err, time.Since(begin))
	}(time.Now())

	return tr.r.Read(p)
}

type traceWriter struct {
	w     io.WriteCloser
	trace *ClientTrace
}

func (tw *traceWriter) Write(p []byte) (c int, err error) {
	tw.trace.WriteStart(p)
	defer func(begin time.Time) {
		tw.trace.WriteDone(p, c, err, time.Since(begin))
	}(time.Now())

	return tw.w.Write(p)
}

func (tw *traceWriter) Close() error {
	return tw.w.Close()
}
