package server

import (
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/text/transform"

	"github.com/gonzalop/ftpd/internal/ratelimit"
)

// transferChunkSize is the buffer size used to move data connection
// payloads.
const transferChunkSize = 32 * 1024

// openDataConn connects to the data address configured by PORT, or to the
// default data port on the client's address.
func (s *session) openDataConn() (net.Conn, error) {
	addr := net.JoinHostPort(s.dataHost, strconv.Itoa(s.dataPort))
	s.log.WithField("addr", addr).Debug("dialing active connection")

	d := net.Dialer{Timeout: s.server.dataTimeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, wrapReply(425, msgNoDataConn, err)
	}
	if s.server.dataTimeout > 0 {
		return &deadlineConn{Conn: conn, timeout: s.server.dataTimeout}, nil
	}
	return conn, nil
}

// deadlineConn pushes the connection deadline forward before every read
// and write, so a stalled peer is dropped without bounding the whole
// transfer.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.Conn.Write(p)
}

// sendData streams src to the client and closes conn before returning,
// whatever the outcome.
func (s *session) sendData(conn net.Conn, src io.Reader) (n int64, err error) {
	defer func() {
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
	}()
	dst := ratelimit.NewWriter(conn, ratelimit.New(s.server.bandwidthLimit))
	return io.CopyBuffer(dst, src, make([]byte, transferChunkSize))
}

// receiveData copies the client's stream into dst until the client closes
// its end, then closes conn.
func (s *session) receiveData(conn net.Conn, dst io.Writer, text bool) (n int64, err error) {
	defer func() {
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
	}()
	src := ratelimit.NewReader(conn, ratelimit.New(s.server.bandwidthLimit))
	if text {
		src = transform.NewReader(src, incomingText(s.encoding))
	}
	return io.CopyBuffer(dst, src, make([]byte, transferChunkSize))
}
