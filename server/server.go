package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Server is the FTP server.
//
// It owns the listening socket and hands every accepted connection to a
// session running in its own goroutine. Sessions are not tracked: once
// started they run until the client quits or disconnects, even after the
// server is stopped.
//
// Lifecycle:
//  1. Create server with NewServer()
//  2. Start with Start(), or block in ListenAndServe() or Serve()
//  3. Stop() closes the listener and wakes the accept loop
//
// Basic example:
//
//	s, err := server.NewServer(":2121", server.WithRoot("/srv/ftp"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Stop()
type Server struct {
	// addr is the TCP address to listen on (e.g., ":21").
	addr string

	// fs is the filesystem holding root; jail is fs restricted to root.
	fs   afero.Fs
	root string
	jail afero.Fs

	auth     Authenticator
	logger   logrus.FieldLogger
	commands commandTable

	// welcomeMessage is the text of the 220 greeting.
	welcomeMessage string

	// systemName is the SYST reply.
	systemName string

	// defaultDataPort is used for data connections until PORT is sent.
	defaultDataPort int

	idleTimeout time.Duration
	dataTimeout time.Duration

	// bandwidthLimit caps each transfer, in bytes per second.
	bandwidthLimit int64

	disabledCommands []string

	maxLoginFailures int
	lockoutDuration  time.Duration
	throttle         *loginThrottle

	portBounceCheck bool

	metricsCollector MetricsCollector
	transferLog      io.Writer
	transferLogMu    sync.Mutex

	// Shutdown handling
	mu         sync.Mutex
	listener   net.Listener
	inShutdown atomic.Bool
	done       chan struct{}
	serveErr   error
}

// ErrServerClosed is returned by Serve and ListenAndServe after a call to
// Stop.
var ErrServerClosed = errors.New("ftp: Server closed")

// NewServer creates a new FTP server with the given address and options.
// The address should be in the form ":port" or "host:port".
// The jail root must be provided via the WithRoot option and must be an
// existing directory.
//
// Default values:
//   - Filesystem: afero.NewOsFs()
//   - Authenticator: DefaultCredentials()
//   - Logger: logrus.StandardLogger()
//   - Default data port: 20
//   - Timeouts: none
//
// Example:
//
//	s, _ := server.NewServer(":2121",
//	    server.WithRoot("/srv/ftp"),
//	    server.WithAuthenticator(server.CredentialTable{"alice": "secret"}),
//	    server.WithIdleTimeout(5*time.Minute),
//	)
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:            addr,
		fs:              afero.NewOsFs(),
		auth:            DefaultCredentials(),
		logger:          logrus.StandardLogger(),
		welcomeMessage:  "FTP Server Ready",
		systemName:      defaultSystemName(),
		defaultDataPort: 20,
		done:            make(chan struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.root == "" {
		return nil, fmt.Errorf("root directory is required (use WithRoot option)")
	}
	ok, err := afero.DirExists(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("checking root %s: %w", s.root, err)
	}
	if !ok {
		return nil, fmt.Errorf("root %s is not a directory", s.root)
	}
	s.jail = afero.NewBasePathFs(s.fs, s.root)

	s.commands, err = newCommandTable(s.disabledCommands)
	if err != nil {
		return nil, err
	}

	if s.maxLoginFailures > 0 {
		s.throttle, err = newLoginThrottle(s.maxLoginFailures, s.lockoutDuration, defaultThrottleEntries)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// defaultSystemName picks the SYST reply for the host operating system.
func defaultSystemName() string {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos", "aix":
		return "UNIX Type: L8"
	case "windows":
		return "Windows_NT"
	case "plan9":
		return "Plan9"
	default:
		return "UNKNOWN Type: L8"
	}
}

// Start binds the configured address and accepts connections in a
// background goroutine. Use Wait to block until the accept loop ends.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	if err := s.attach(ln); err != nil {
		return err
	}

	s.logger.WithField("addr", ln.Addr().String()).Info("FTP server listening")
	go func() {
		_ = s.acceptLoop(ln)
	}()
	return nil
}

// ListenAndServe starts the FTP server on the configured address.
// It blocks until the server stops or an error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.WithField("addr", ln.Addr().String()).Info("FTP server listening")
	return s.Serve(ln)
}

// Serve accepts incoming connections on the listener l.
// It blocks until Stop is called, returning ErrServerClosed, or until
// Accept fails, returning that error. Sessions already running are not
// affected either way.
func (s *Server) Serve(l net.Listener) error {
	if err := s.attach(l); err != nil {
		return err
	}
	return s.acceptLoop(l)
}

func (s *Server) attach(l net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inShutdown.Load() {
		l.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		l.Close()
		return errors.New("server already started")
	}
	s.listener = l
	return nil
}

func (s *Server) acceptLoop(l net.Listener) (err error) {
	defer func() {
		l.Close()
		if !errors.Is(err, ErrServerClosed) {
			s.serveErr = err
		}
		close(s.done)
	}()

	for {
		conn, err := l.Accept()
		if s.inShutdown.Load() {
			if conn != nil {
				conn.Close()
			}
			return ErrServerClosed
		}
		if err != nil {
			s.logger.WithError(err).Error("accept error")
			return fmt.Errorf("accept: %w", err)
		}

		if s.metricsCollector != nil {
			s.metricsCollector.RecordConnection(true, "accepted")
		}
		go s.handleConnection(conn)
	}
}

// handleConnection runs a session for conn until it ends.
func (s *Server) handleConnection(conn net.Conn) {
	newSession(s, conn).serve()
}

// Addr returns the bound listener address, or nil before the server
// has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Wait blocks until the accept loop has exited. It returns nil after
// Stop, or the Accept error that ended the loop.
func (s *Server) Wait() error {
	<-s.done
	return s.serveErr
}

// Stop stops accepting connections. A blocked Accept is woken by
// connecting to the listener over loopback before it is closed.
// Running sessions are left alone. Stop is safe to call more than once.
func (s *Server) Stop() error {
	if s.inShutdown.Swap(true) {
		return nil
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		// Never started, and attach now refuses to.
		close(s.done)
		return nil
	}

	var result *multierror.Error
	conn, err := net.DialTimeout("tcp", loopbackAddr(ln.Addr()), time.Second)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("waking accept loop: %w", err))
	} else {
		conn.Close()
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		result = multierror.Append(result, fmt.Errorf("closing listener: %w", err))
	}

	s.logger.Info("FTP server stopped")
	return result.ErrorOrNil()
}

// loopbackAddr turns a listening address into one that can be dialled
// locally. Wildcard hosts become the loopback address of the same family.
func loopbackAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	ip := net.ParseIP(host)
	if host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
		if ip != nil && ip.To4() == nil {
			host = "::1"
		}
	}
	return net.JoinHostPort(host, port)
}
