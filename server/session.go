package server

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/transform"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

var errLineTooLong = errors.New("command too long")

// session represents an FTP client session.
// All of its state is owned by the goroutine running serve.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	log    *logrus.Entry

	// Session tracking
	sessionID string
	remoteIP  string

	// Authentication. pendingUser is set between an accepted USER and
	// the following PASS.
	loggedIn    bool
	user        string
	pendingUser string

	// cwd is the working directory as segments below the jail root.
	cwd []string

	encoding textEncoding
	binary   bool

	// Data connection target, from PORT or the defaults.
	dataHost string
	dataPort int

	renameFrom string // For RNFR/RNTO, empty when none is pending

	lastReply int
	quit      bool
}

// generateSessionID generates a unique 8-character session ID.
func generateSessionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%08x", b)
}

// newSession creates a new session.
func newSession(server *Server, conn net.Conn) *session {
	sessionID := generateSessionID()

	remoteAddr := conn.RemoteAddr().String()
	remoteIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		remoteIP = remoteAddr // Fallback to full address
	}

	s := &session{
		server:    server,
		conn:      conn,
		reader:    bufio.NewReader(transform.NewReader(conn, telnetFilter{})),
		writer:    bufio.NewWriter(conn),
		sessionID: sessionID,
		remoteIP:  remoteIP,
		log: server.logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"remote_ip":  remoteIP,
		}),
	}
	s.resetState()
	return s
}

// resetState puts the session back in its initial, logged out state.
func (s *session) resetState() {
	s.loggedIn = false
	s.user = ""
	s.pendingUser = ""
	s.cwd = nil
	s.encoding = encodingASCII
	s.binary = false
	s.dataHost = s.remoteIP
	s.dataPort = s.server.defaultDataPort
	s.renameFrom = ""
}

// serve runs the request/reply loop until QUIT, an unknown command or a
// transport failure.
func (s *session) serve() {
	defer s.close()

	s.reply(220, s.server.welcomeMessage)
	s.log.Info("session_started")

	for !s.quit {
		if s.server.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.idleTimeout))
		}

		line, err := s.readCommand()
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				s.reply(500, "Command line too long.")
				return
			}
			if err != io.EOF {
				s.log.WithError(err).WithField("user", s.user).Warn("read error")
			}
			return
		}

		s.handleCommand(line)
	}
}

// readCommand reads one line, without its CRLF terminator.
func (s *session) readCommand() (string, error) {
	var line []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return string(line), err
		}

		if b == '\n' {
			return strings.TrimSuffix(string(line), "\r"), nil
		}
		if len(line) >= MaxCommandLength {
			return "", errLineTooLong
		}
		line = append(line, b)
	}
}

// close closes the control connection.
func (s *session) close() {
	var result *multierror.Error
	if err := s.writer.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.conn.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	entry := s.log.WithField("user", s.user)
	if err := result.ErrorOrNil(); err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("session closed")
}

// handleCommand parses and dispatches one control line.
func (s *session) handleCommand(line string) {
	if line == "" {
		return
	}

	if !s.encoding.validLine(line) {
		s.reply(501, fmt.Sprintf("Command not valid in %s mode.", s.encoding))
		return
	}

	verb, arg := splitCommand(line)

	logArg := arg
	if verb == "PASS" {
		logArg = "***"
	}
	s.log.WithFields(logrus.Fields{
		"user": s.user,
		"cmd":  verb,
		"arg":  logArg,
	}).Debug("command received")

	if len(line) == 3 && !bareThreeLetter[verb] {
		s.reply(502, "Command not implemented.")
		return
	}

	def, ok := s.server.commands[verb]
	if !ok {
		s.reply(502, "Command not recognized.")
		s.quit = true
		return
	}
	if !def.enabled {
		s.reply(502, "Command not implemented.")
		return
	}
	if !def.public && !s.loggedIn {
		s.reply(530, msgNotLoggedIn)
		return
	}
	switch {
	case def.arity == argNone && arg != "":
		s.reply(501, "Command takes no arguments.")
		return
	case def.arity == argRequired && strings.TrimSpace(arg) == "":
		s.reply(501, "Command requires an argument.")
		return
	}

	start := time.Now()
	s.lastReply = 0
	s.dispatch(verb, def, arg)

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordCommand(verb, s.lastReply > 0 && s.lastReply < 400, time.Since(start))
	}
}

// dispatch runs a handler, turning a returned error into its reply and a
// panic into a parameter error.
func (s *session) dispatch(verb string, def commandDef, arg string) {
	var herr error
	err := oops.In(errorDomain).With("cmd", verb).Recover(func() {
		herr = def.handler(s, arg)
	})
	if err != nil {
		s.log.WithError(err).WithField("cmd", verb).Error("command handler panic")
		s.reply(501, msgSyntax)
		return
	}
	if herr != nil {
		code, msg := replyFor(herr)
		s.log.WithError(herr).WithFields(logrus.Fields{
			"user": s.user,
			"cmd":  verb,
			"code": code,
		}).Debug("command failed")
		s.reply(code, msg)
	}
}

// reply sends a response to the client.
func (s *session) reply(code int, message string) {
	s.lastReply = code
	fmt.Fprintf(s.writer, "%d %s\r\n", code, message)
	s.writer.Flush()
}
