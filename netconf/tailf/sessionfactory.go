package tailf

import (
	"context"

	"github.com/damianoneill/nso/netconf/client"
	"github.com/damianoneill/nso/netconf/ops"

	"golang.org/x/crypto/ssh"
)

// NewSession connects to the NSO server at target using the ssh configuration, and establishes
// a session with default configuration.
func NewSession(ctx context.Context, sshcfg *ssh.ClientConfig, target string) (Session, error) {
	return NewSessionWithConfig(ctx, sshcfg, target, client.DefaultConfig)
}

// NewSessionWithConfig connects to the NSO server at target using the ssh configuration, and establishes
// a session with the client configuration.
func NewSessionWithConfig(ctx context.Context, sshcfg *ssh.ClientConfig, target string, cfg *client.Config) (Session, error) {
	s, err := ops.NewSessionWithConfig(ctx, sshcfg, target, cfg)
	if err != nil {
		return nil, err
	}
	return NewSessionFromOps(s), nil
}
