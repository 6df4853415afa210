package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"crmflow/internal/access"
	"crmflow/internal/config"
	"crmflow/internal/ipc"
	"crmflow/internal/logging"
)

type commandContext struct {
	socketFlag *string
	configFlag *string
	logLevel   *string
	actor      *string
	jsonOutput *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if socket := strings.TrimSpace(*c.socketFlag); socket != "" {
			return socket
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	fallback := config.Default()
	return fallback.SocketPath()
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.logLevel != nil {
		if level := strings.TrimSpace(*c.logLevel); level != "" {
			return level
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

// actorName resolves who a mutating command acts as.
func (c *commandContext) actorName() string {
	if c.actor != nil {
		if actor := strings.TrimSpace(*c.actor); actor != "" {
			return actor
		}
	}
	for _, key := range []string{"CRMFLOW_ACTOR", "USER"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return "cli"
}

func (c *commandContext) wantJSON() bool {
	return c.jsonOutput != nil && *c.jsonOutput
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// withReader runs fn against the daemon, or against the local database when
// the daemon is not reachable.
func (c *commandContext) withReader(cmd *cobra.Command, fn func(access.Reader) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := access.OpenWithFallback(c.dialClient, access.LocalService(cfg, logging.NewNop()))
	if err != nil {
		return err
	}
	defer session.Close()
	if session.Local && !c.wantJSON() {
		fmt.Fprintln(cmd.ErrOrStderr(), "daemon not reachable; reading local database")
	}
	return fn(session.Reader)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `crmflow start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
