package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func fatalIfErr(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf(format+": %v", append(args, err)...)
	}
}

// quietLogger discards everything.
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// startTestServer runs a server on a loopback port, jailed to /srv on an
// in-memory filesystem.
func startTestServer(t *testing.T, opts ...Option) (*Server, afero.Fs) {
	t.Helper()
	fs := newMemRoot(t)

	opts = append([]Option{WithFs(fs), WithRoot("/srv"), WithLogger(quietLogger())}, opts...)
	s, err := NewServer("127.0.0.1:0", opts...)
	fatalIfErr(t, err, "NewServer")
	fatalIfErr(t, s.Start(), "Start")
	t.Cleanup(func() { _ = s.Stop() })
	return s, fs
}

// newMemRoot returns an in-memory filesystem holding an empty /srv.
func newMemRoot(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	fatalIfErr(t, fs.MkdirAll("/srv", 0755), "creating root")
	return fs
}

// testClient is a raw control connection.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTest(t *testing.T, s *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	fatalIfErr(t, err, "dial")
	t.Cleanup(func() { conn.Close() })

	c := &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
	if code, msg := c.readReply(); code != 220 {
		t.Fatalf("greeting: got %d %q", code, msg)
	}
	return c
}

// readReply reads one reply line.
func (c *testClient) readReply() (int, string) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("reading reply: %v (partial %q)", err, line)
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 {
		c.t.Fatalf("short reply %q", line)
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		c.t.Fatalf("malformed reply %q", line)
	}
	return code, strings.TrimSpace(line[3:])
}

// send writes a raw control line.
func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\r\n", line)
	fatalIfErr(c.t, err, "sending %q", line)
}

// cmd sends a command and returns its reply.
func (c *testClient) cmd(line string) (int, string) {
	c.t.Helper()
	c.send(line)
	return c.readReply()
}

// expect sends a command and fails the test unless the reply has code.
func (c *testClient) expect(line string, code int) string {
	c.t.Helper()
	got, msg := c.cmd(line)
	if got != code {
		c.t.Fatalf("%s: got %d %q, want %d", line, got, msg, code)
	}
	return msg
}

func (c *testClient) login() {
	c.t.Helper()
	c.expect("USER eps", 331)
	c.expect("PASS eps", 230)
}

// expectClosed fails unless the server has closed the control connection.
func (c *testClient) expectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if line, err := c.r.ReadString('\n'); err == nil {
		c.t.Fatalf("expected connection to be closed, got %q", line)
	}
}

// portCommand returns the PORT command pointing at ln.
func portCommand(ln net.Listener) string {
	port := ln.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("PORT 127,0,0,1,%d,%d", port/256, port%256)
}

// transfer runs a data command against a fresh active-mode listener.
// When payload is non-nil it is sent to the server, otherwise whatever
// the server sends is returned. All control replies read are returned in
// order.
func (c *testClient) transfer(line string, payload []byte) ([]byte, []int) {
	c.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(c.t, err, "data listener")
	defer ln.Close()
	c.expect(portCommand(ln), 200)

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- result{err: err}
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		if payload != nil {
			_, err = conn.Write(payload)
			done <- result{err: err}
			return
		}
		data, err := io.ReadAll(conn)
		done <- result{data: data, err: err}
	}()

	code, _ := c.cmd(line)
	codes := []int{code}
	if code != 150 {
		return nil, codes
	}

	res := <-done
	if res.err != nil {
		c.t.Fatalf("%s: data connection: %v", line, res.err)
	}
	code, _ = c.readReply()
	codes = append(codes, code)
	verb, _ := splitCommand(line)
	if code == 226 && (verb == "RETR" || verb == "STOR" || verb == "APPE") {
		code, _ = c.readReply()
		codes = append(codes, code)
	}
	return res.data, codes
}
