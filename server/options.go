package server

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// WithRoot sets the jail directory. Every client path is interpreted
// relative to it and no command can reach outside it.
// This option is required.
//
// Example:
//
//	s, _ := server.NewServer(":21", server.WithRoot("/srv/ftp"))
func WithRoot(root string) Option {
	return func(s *Server) error {
		if root == "" {
			return errors.New("root directory must not be empty")
		}
		s.root = root
		return nil
	}
}

// WithFs sets the filesystem the root directory lives on.
// If not specified, the operating system filesystem is used.
//
// An in-memory filesystem is convenient for tests:
//
//	fs := afero.NewMemMapFs()
//	_ = fs.MkdirAll("/srv", 0755)
//	s, _ := server.NewServer(":0", server.WithFs(fs), server.WithRoot("/srv"))
func WithFs(fs afero.Fs) Option {
	return func(s *Server) error {
		if fs == nil {
			return errors.New("filesystem must not be nil")
		}
		s.fs = fs
		return nil
	}
}

// WithAuthenticator sets the credential checker.
// If not specified, DefaultCredentials is used.
func WithAuthenticator(auth Authenticator) Option {
	return func(s *Server) error {
		if auth == nil {
			return errors.New("authenticator must not be nil")
		}
		s.auth = auth
		return nil
	}
}

// WithLogger sets a custom logger for the server.
// If not specified, logrus.StandardLogger() is used.
//
// Example with debug logging:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	s, _ := server.NewServer(":21",
//	    server.WithRoot("/srv/ftp"),
//	    server.WithLogger(logger),
//	)
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithWelcomeMessage sets the text of the 220 greeting.
func WithWelcomeMessage(msg string) Option {
	return func(s *Server) error {
		s.welcomeMessage = msg
		return nil
	}
}

// WithSystemName overrides the SYST reply, which otherwise depends on the
// host operating system.
func WithSystemName(name string) Option {
	return func(s *Server) error {
		s.systemName = name
		return nil
	}
}

// WithDefaultDataPort sets the port on the client's address that data
// connections go to until the client sends PORT. Defaults to 20.
func WithDefaultDataPort(port int) Option {
	return func(s *Server) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid default data port %d", port)
		}
		s.defaultDataPort = port
		return nil
	}
}

// WithIdleTimeout closes a session whose control connection stays silent
// for longer than d. Zero, the default, waits forever.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return errors.New("idle timeout must not be negative")
		}
		s.idleTimeout = d
		return nil
	}
}

// WithDataTimeout bounds connecting the data connection and each read or
// write on it. Zero, the default, waits forever.
func WithDataTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return errors.New("data timeout must not be negative")
		}
		s.dataTimeout = d
		return nil
	}
}

// WithBandwidthLimit caps the data rate of each transfer, in bytes per
// second. Zero disables the limit.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		if bytesPerSecond < 0 {
			return errors.New("bandwidth limit must not be negative")
		}
		s.bandwidthLimit = bytesPerSecond
		return nil
	}
}

// WithDisableCommands disables the given verbs. Clients sending them get
// 502 and the session continues. USER, PASS and QUIT cannot be disabled.
//
// Example:
//
//	s, _ := server.NewServer(":21",
//	    server.WithRoot("/srv/ftp"),
//	    server.WithDisableCommands(server.WriteCommands...),
//	)
func WithDisableCommands(cmds ...string) Option {
	return func(s *Server) error {
		s.disabledCommands = append(s.disabledCommands, cmds...)
		return nil
	}
}

// WithLoginThrottle locks a remote address out for lockout after
// maxFailures consecutive failed logins. A zero maxFailures disables
// throttling, which is the default.
func WithLoginThrottle(maxFailures int, lockout time.Duration) Option {
	return func(s *Server) error {
		if maxFailures < 0 || lockout < 0 {
			return errors.New("login throttle values must not be negative")
		}
		s.maxLoginFailures = maxFailures
		s.lockoutDuration = lockout
		return nil
	}
}

// WithPortBounceCheck rejects PORT commands naming an address other than
// the client's own. Off by default.
func WithPortBounceCheck(enable bool) Option {
	return func(s *Server) error {
		s.portBounceCheck = enable
		return nil
	}
}

// WithMetricsCollector sets an optional collector for server metrics.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTransferLog writes one xferlog formatted line per completed
// transfer to w.
func WithTransferLog(w io.Writer) Option {
	return func(s *Server) error {
		s.transferLog = w
		return nil
	}
}
