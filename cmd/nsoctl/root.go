package main

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/damianoneill/nso/netconf/client"
	"github.com/damianoneill/nso/netconf/tailf"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const envPrefix = "NSOCTL"

// app holds the configuration shared by all commands.
type app struct {
	v *viper.Viper
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "nsoctl",
		Short:         "nsoctl applies configuration to Cisco NSO through NETCONF transactions",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Show what a change would do, without applying it
  nsoctl --host nso.example.net txn dry-run --file devices.xml

  # Apply a change in NSO's text format, recording a rollback label
  nsoctl txn apply --text --file change.cfg --label CHG-1234

  # Commit the candidate datastore, reverting after 10 minutes unless confirmed
  nsoctl commit --confirmed --confirm-timeout 600`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfigFile(); err != nil {
				return err
			}
			return a.configureLogging()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to YAML config file")
	flags.String("host", "localhost", "NSO host")
	flags.Int("port", 2022, "NSO NETCONF port")
	flags.StringP("user", "u", "admin", "user name")
	flags.StringP("password", "p", "", "password")
	flags.String("known-hosts", "", "known_hosts file used to verify the server key (not verified if empty)")
	flags.Duration("timeout", 10*time.Second, "connection and hello timeout")
	flags.String("log-level", "warning", "log level (trace, debug, info, warning, error)")
	flags.String("log-format", "text", "log format (text, json)")
	a.bindFlags(flags)

	cmd.AddCommand(
		newTxnCommand(a),
		newCommitCommand(a),
		newOperationsCommand(),
	)
	return cmd
}

func (a *app) bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(flag *pflag.Flag) {
		_ = a.v.BindPFlag(flag.Name, flag)
	})
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
}

func (a *app) loadConfigFile() error {
	path := strings.TrimSpace(a.v.GetString("config"))
	if path == "" {
		return nil
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config file %q", path)
	}
	return nil
}

func (a *app) configureLogging() error {
	level, err := log.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)

	switch format := a.v.GetString("log-format"); format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{})
	default:
		return errors.Errorf("unknown log format %q", format)
	}
	return nil
}

func (a *app) target() string {
	return net.JoinHostPort(a.v.GetString("host"), strconv.Itoa(a.v.GetInt("port")))
}

func (a *app) sshConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:            a.v.GetString("user"),
		Auth:            []ssh.AuthMethod{ssh.Password(a.v.GetString("password"))},
		Timeout:         a.v.GetDuration("timeout"),
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	}
	if path := a.v.GetString("known-hosts"); path != "" {
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load known hosts %q", path)
		}
		cfg.HostKeyCallback = cb
	}
	return cfg, nil
}

// connect establishes an NSO session, logging client events according to the configured level.
func (a *app) connect(ctx context.Context) (tailf.Session, error) {
	sshcfg, err := a.sshConfig()
	if err != nil {
		return nil, err
	}

	hooks := client.DefaultLoggingHooks
	switch {
	case log.IsLevelEnabled(log.DebugLevel):
		hooks = client.DiagnosticLoggingHooks
	case log.IsLevelEnabled(log.InfoLevel):
		hooks = client.MetricLoggingHooks
	}
	// ContextClientTrace completes missing hooks in place.
	trace := *hooks
	ctx = client.WithClientTrace(ctx, &trace)

	secs := int(a.v.GetDuration("timeout") / time.Second)
	if secs < 1 {
		secs = 1
	}
	target := a.target()
	log.WithField("target", target).Debug("Connecting")
	return tailf.NewSessionWithConfig(ctx, sshcfg, target, &client.Config{SetupTimeoutSecs: secs})
}

func readPayload(path string, text bool) (tailf.ConfigPayload, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read payload")
	}
	if text {
		return tailf.TextConfig(b), nil
	}
	return tailf.XMLConfig(b), nil
}
