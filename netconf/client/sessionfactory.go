package client

import (
	"context"

	"github.com/imdario/mergo"
	"golang.org/x/crypto/ssh"
)

// Defines a factory method for instantiating netconf rpc sessions.

// NewRPCSession connects to the target using the ssh configuration, and establishes
// a netconf session with default configuration.
func NewRPCSession(ctx context.Context, sshcfg *ssh.ClientConfig, target string) (s Session, err error) {
	return NewRPCSessionWithConfig(ctx, sshcfg, target, DefaultConfig)
}

// NewRPCSessionWithConfig connects to the target using the ssh configuration, and establishes
// a netconf session with the client configuration.
// Any values not set in cfg are taken from DefaultConfig.
func NewRPCSessionWithConfig(ctx context.Context, sshcfg *ssh.ClientConfig, target string, cfg *Config) (s Session, err error) {
	resolvedConfig := Config{}
	if cfg != nil {
		resolvedConfig = *cfg
	}
	_ = mergo.Merge(&resolvedConfig, DefaultConfig)

	var t Transport
	if t, err = NewSSHTransport(ctx, sshcfg, target, "netconf"); err != nil {
		return nil, err
	}

	// NewSession closes the transport if session setup fails.
	return NewSession(ctx, t, &resolvedConfig)
}
