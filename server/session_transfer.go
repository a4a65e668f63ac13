package server

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/text/transform"
)

func (s *session) handleTYPE(arg string) error {
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "A", "A N":
		s.binary = false
		s.encoding = encodingASCII
		s.reply(200, "Type set to A.")
	case "I", "L 8":
		s.binary = true
		s.reply(200, "Type set to I.")
	default:
		return replyErr(504, "Type not supported.")
	}
	return nil
}

// handlePORT sets the data connection target. The argument is checked in
// full before anything is changed.
func (s *session) handlePORT(arg string) error {
	// Format: h1,h2,h3,h4,p1,p2
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		return replyErr(501, "Syntax error in parameters or arguments.")
	}

	var nums [6]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 255 {
			return replyErr(501, "Syntax error in parameters or arguments.")
		}
		nums[i] = n
	}

	ip := net.IPv4(byte(nums[0]), byte(nums[1]), byte(nums[2]), byte(nums[3]))
	if s.server.portBounceCheck && !s.validateActiveIP(ip) {
		s.log.WithField("target", ip.String()).Warn("port_bounce_rejected")
		return replyErr(501, "Illegal PORT command.")
	}

	s.dataHost = ip.String()
	s.dataPort = nums[4]*256 + nums[5]
	s.reply(200, "PORT command successful.")
	return nil
}

// validateActiveIP ensures the data connection target matches the control
// connection source.
func (s *session) validateActiveIP(ip net.IP) bool {
	remoteIP := net.ParseIP(s.remoteIP)
	if remoteIP == nil {
		return false
	}
	return ip.Equal(remoteIP)
}

// modeDescription names the current transfer type and encoding.
func (s *session) modeDescription() string {
	if s.binary {
		return "binary mode"
	}
	return fmt.Sprintf("text mode, %s encoding", s.encoding)
}

func (s *session) handleLIST(arg string) error {
	return s.list("LIST", arg, formatListLine)
}

func (s *session) handleNLST(arg string) error {
	return s.list("NLST", arg, formatNameLine)
}

// list sends the entries of a directory, one formatted line each, over
// the data connection.
func (s *session) list(cmd, arg string, format func(os.FileInfo) string) error {
	segs := s.cwd
	if arg != "" {
		var err error
		if segs, err = s.resolveArg(arg); err != nil {
			return err
		}
	}
	p := virtualPath(segs)
	if err := s.statDir(p); err != nil {
		return wrapReply(550, "No such directory.", err)
	}
	entries, err := afero.ReadDir(s.server.jail, p)
	if err != nil {
		return wrapReply(550, "Could not read directory.", err)
	}

	conn, err := s.openDataConn()
	if err != nil {
		return err
	}
	s.reply(150, "Here comes the directory listing.")

	start := time.Now()
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(format(entry))
	}
	src := transform.NewReader(strings.NewReader(b.String()), s.encoding.validator())
	n, err := s.sendData(conn, src)
	if err != nil {
		s.transferFailed(cmd, p, err)
		s.reply(451, "Requested action aborted: error sending listing.")
		return nil
	}

	s.log.WithFields(logrus.Fields{
		"path":    p,
		"entries": len(entries),
		"bytes":   n,
	}).Debug("listing sent")
	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer(cmd, n, time.Since(start))
	}
	s.reply(226, "Directory send OK.")
	return nil
}

func (s *session) handleRETR(path string) error {
	segs, err := s.resolveArg(path)
	if err != nil {
		return err
	}
	p := virtualPath(segs)
	info, err := s.server.jail.Stat(p)
	if err != nil {
		return errNoSuchFile(err)
	}
	if info.IsDir() {
		return replyErr(450, "Is a directory.")
	}

	file, err := s.server.jail.Open(p)
	if err != nil {
		return wrapReply(450, "Could not open file.", err)
	}
	defer file.Close()

	conn, err := s.openDataConn()
	if err != nil {
		return err
	}
	s.reply(150, fmt.Sprintf("Opening %s data connection for %s (%d bytes).", s.modeDescription(), p, info.Size()))

	start := time.Now()
	var src io.Reader = file
	if !s.binary {
		src = transform.NewReader(file, outgoingText(s.encoding))
	}
	n, err := s.sendData(conn, src)
	if err != nil {
		s.transferFailed("RETR", p, err)
		return wrapReply(450, fmt.Sprintf("Transfer failed in %s.", s.modeDescription()), err)
	}

	s.transferDone("RETR", p, n, time.Since(start))
	s.reply(226, "Closing data connection.")
	s.reply(250, "Requested file action okay, completed.")
	return nil
}

func (s *session) handleSTOR(path string) error {
	return s.store("STOR", path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (s *session) handleAPPE(path string) error {
	return s.store("APPE", path, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

// store receives a file from the client, writing or appending it
// according to flag.
func (s *session) store(cmd, path string, flag int) error {
	segs, err := s.resolveArg(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return replyErr(450, "Is a directory.")
	}
	if err := s.statDir(virtualPath(segs[:len(segs)-1])); err != nil {
		return errNoSuchFile(err)
	}
	p := virtualPath(segs)
	if info, err := s.server.jail.Stat(p); err == nil && info.IsDir() {
		return replyErr(450, "Is a directory.")
	}

	// The file is only touched once the data connection is up.
	conn, err := s.openDataConn()
	if err != nil {
		return err
	}
	file, err := s.server.jail.OpenFile(p, flag, 0644)
	if err != nil {
		conn.Close()
		return wrapReply(450, "Could not create file.", err)
	}
	defer file.Close()

	s.reply(150, fmt.Sprintf("Opening %s data connection for %s.", s.modeDescription(), p))

	start := time.Now()
	n, err := s.receiveData(conn, file, !s.binary)
	if err == nil {
		err = file.Close()
	}
	if err != nil {
		s.transferFailed(cmd, p, err)
		if isEncodingError(err) {
			return wrapReply(450, fmt.Sprintf("Data not valid in %s.", s.modeDescription()), err)
		}
		return wrapReply(451, "Requested action aborted: transfer failed.", err)
	}

	s.transferDone(cmd, p, n, time.Since(start))
	s.reply(226, "Closing data connection.")
	s.reply(250, "Requested file action okay, completed.")
	return nil
}

// transferDone logs and records a completed file transfer.
func (s *session) transferDone(cmd, path string, bytes int64, duration time.Duration) {
	// Calculate throughput in MB/s
	throughputMBps := float64(0)
	if duration.Seconds() > 0 {
		throughputMBps = float64(bytes) / duration.Seconds() / 1024 / 1024
	}

	s.log.WithFields(logrus.Fields{
		"user":            s.user,
		"operation":       cmd,
		"path":            path,
		"bytes":           bytes,
		"duration_ms":     duration.Milliseconds(),
		"throughput_mbps": fmt.Sprintf("%.2f", throughputMBps),
	}).Info("transfer_complete")

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer(cmd, bytes, duration)
	}
	s.logTransfer(cmd, path, bytes, duration)
}

func (s *session) transferFailed(cmd, path string, err error) {
	s.log.WithError(err).WithFields(logrus.Fields{
		"user":      s.user,
		"operation": cmd,
		"path":      path,
	}).Warn("transfer_failed")
}

// logTransfer appends a line in xferlog format to the transfer log:
//
//	current-time transfer-time remote-host file-size filename transfer-type
//	special-action-flag direction access-mode username service-name
//	authentication-method authenticated-user-id completion-status
func (s *session) logTransfer(cmd, filename string, bytes int64, duration time.Duration) {
	if s.server.transferLog == nil {
		return
	}

	transferTime := int64(duration.Seconds())
	if transferTime == 0 {
		transferTime = 1
	}

	tType := "a"
	if s.binary {
		tType = "b"
	}
	direction := "o"
	if cmd == "STOR" || cmd == "APPE" {
		direction = "i"
	}

	line := fmt.Sprintf("%s %d %s %d %s %s _ %s r %s ftp 0 * c\n",
		time.Now().Format("Mon Jan _2 15:04:05 2006"),
		transferTime,
		s.remoteIP,
		bytes,
		filename,
		tType,
		direction,
		s.user,
	)
	s.server.transferLogMu.Lock()
	defer s.server.transferLogMu.Unlock()
	_, _ = io.WriteString(s.server.transferLog, line)
}
