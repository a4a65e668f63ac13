// Package config loads the ftpd daemon configuration from flags, the
// environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gonzalop/ftpd/internal/logging"
	"github.com/gonzalop/ftpd/server"
)

// EnvPrefix prefixes the environment variables read by Load, e.g.
// FTPD_LISTEN or FTPD_IDLE_TIMEOUT.
const EnvPrefix = "FTPD"

// Defaults.
const (
	DefaultListen   = ":2121"
	DefaultRoot     = "."
	DefaultDataPort = 20
	DefaultUsers    = "eps:eps"
)

// Config holds the daemon configuration.
type Config struct {
	Listen   string   `mapstructure:"listen"`
	Root     string   `mapstructure:"root"`
	Users    []string `mapstructure:"users"`
	DataPort int      `mapstructure:"data-port"`
	Banner   string   `mapstructure:"banner"`
	System   string   `mapstructure:"system"`

	IdleTimeout time.Duration `mapstructure:"idle-timeout"`
	DataTimeout time.Duration `mapstructure:"data-timeout"`

	// BandwidthLimit is in bytes per second, zero for unlimited.
	BandwidthLimit int64 `mapstructure:"bandwidth-limit"`

	MaxLoginFailures int           `mapstructure:"max-login-failures"`
	LockoutDuration  time.Duration `mapstructure:"lockout"`

	Disable         []string `mapstructure:"disable"`
	ReadOnly        bool     `mapstructure:"read-only"`
	PortBounceCheck bool     `mapstructure:"port-bounce-check"`

	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	TransferLog string `mapstructure:"transfer-log"`

	// ListCommands asks the daemon to print the command table and exit.
	ListCommands bool `mapstructure:"list-commands"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"config"`
}

// NewFlagSet returns the daemon's command line flags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringP("config", "c", "", "config file (YAML, TOML or JSON)")
	fs.StringP("listen", "l", DefaultListen, "control connection listen address")
	fs.StringP("root", "r", DefaultRoot, "directory clients are jailed to")
	fs.StringSliceP("users", "u", []string{DefaultUsers}, "accepted credentials as user:password")
	fs.Int("data-port", DefaultDataPort, "data port used before the client sends PORT")
	fs.String("banner", "", "text of the 220 greeting")
	fs.String("system", "", "SYST reply (detected from the OS when empty)")
	fs.Duration("idle-timeout", 0, "close sessions idle for this long (0 disables)")
	fs.Duration("data-timeout", 0, "data connection connect and I/O timeout (0 disables)")
	fs.Int64("bandwidth-limit", 0, "per-transfer limit in bytes per second (0 disables)")
	fs.Int("max-login-failures", 0, "failed logins before an address is locked out (0 disables)")
	fs.Duration("lockout", 15*time.Minute, "how long a locked out address is refused")
	fs.StringSlice("disable", nil, "verbs to disable")
	fs.Bool("read-only", false, "disable every command that modifies the filesystem")
	fs.Bool("port-bounce-check", false, "reject PORT targets other than the client address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", logging.FormatText, "log format (text, json)")
	fs.String("transfer-log", "", "append xferlog lines to this file")
	fs.Bool("list-commands", false, "print the command table and exit")
	return fs
}

// Load parses args and merges them with the environment and the config
// file named by --config. Flags set explicitly win over the environment,
// which wins over the file, which wins over the defaults.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		result = multierror.Append(result, fmt.Errorf("listen: %w", err))
	}
	if c.Root == "" {
		result = multierror.Append(result, errors.New("root must not be empty"))
	}
	if len(c.Users) == 0 {
		result = multierror.Append(result, errors.New("at least one user is required"))
	} else if _, err := server.ParseCredentials(c.Users); err != nil {
		result = multierror.Append(result, fmt.Errorf("users: %w", err))
	}
	if c.DataPort < 1 || c.DataPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("data-port %d out of range", c.DataPort))
	}
	if c.IdleTimeout < 0 || c.DataTimeout < 0 || c.LockoutDuration < 0 {
		result = multierror.Append(result, errors.New("timeouts must not be negative"))
	}
	if c.BandwidthLimit < 0 {
		result = multierror.Append(result, errors.New("bandwidth-limit must not be negative"))
	}
	if c.MaxLoginFailures < 0 {
		result = multierror.Append(result, errors.New("max-login-failures must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("log-level: %w", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported log-format %q", c.LogFormat))
	}
	return result.ErrorOrNil()
}

// DisabledCommands returns the verbs to disable, including the write
// commands in read-only mode.
func (c *Config) DisabledCommands() []string {
	disabled := append([]string(nil), c.Disable...)
	if c.ReadOnly {
		disabled = append(disabled, server.WriteCommands...)
	}
	return disabled
}

// ServerOptions translates the configuration into server options.
// transferLog may be nil.
func (c *Config) ServerOptions(logger logrus.FieldLogger, transferLog io.Writer) ([]server.Option, error) {
	creds, err := server.ParseCredentials(c.Users)
	if err != nil {
		return nil, err
	}

	opts := []server.Option{
		server.WithRoot(c.Root),
		server.WithAuthenticator(creds),
		server.WithLogger(logger),
		server.WithDefaultDataPort(c.DataPort),
		server.WithIdleTimeout(c.IdleTimeout),
		server.WithDataTimeout(c.DataTimeout),
		server.WithBandwidthLimit(c.BandwidthLimit),
		server.WithDisableCommands(c.DisabledCommands()...),
		server.WithLoginThrottle(c.MaxLoginFailures, c.LockoutDuration),
		server.WithPortBounceCheck(c.PortBounceCheck),
	}
	if c.Banner != "" {
		opts = append(opts, server.WithWelcomeMessage(c.Banner))
	}
	if c.System != "" {
		opts = append(opts, server.WithSystemName(c.System))
	}
	if transferLog != nil {
		opts = append(opts, server.WithTransferLog(transferLog))
	}
	return opts, nil
}
