// Package server implements a small FTP server confined to a single
// directory tree.
//
// # Overview
//
// The server speaks the RFC 959 control protocol over TCP and moves file
// contents and listings over active mode data connections: the server
// connects to the address the client announced with PORT. Every path a
// client sends is interpreted relative to a jail root and rejected if it
// would climb above it.
//
// # Getting Started
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/gonzalop/ftpd/server"
//	)
//
//	func main() {
//	    s, err := server.NewServer(":2121",
//	        server.WithRoot("/srv/ftp"),
//	        server.WithAuthenticator(server.CredentialTable{"eps": "eps"}),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Fatal(s.ListenAndServe())
//	}
//
// # Sessions
//
// Each accepted connection gets its own goroutine and its own state:
// login, working directory, transfer type (ASCII or binary), character
// encoding (ASCII, or UTF-8 after "OPTS UTF8 ON") and the data
// connection target. Sessions share nothing but the read-only command
// table, the authenticator and the optional login throttle.
//
// Replies are single lines of the form "<code> <text>\r\n". A command
// the server does not know is answered with 502 and ends the session; a
// known command that is disabled is answered with 502 and the session
// continues. Commands other than USER, PASS, REIN, QUIT, NOOP, SYST,
// HELP, OPTS and FEAT require a logged in session.
//
// # Transfers
//
// RETR, STOR, APPE, LIST and NLST open a data connection for the length
// of one transfer. The data connection is always closed before the final
// reply. In ASCII type, line endings are translated between LF on disk
// and CRLF on the wire and content is checked against the session's
// encoding.
//
// # Filesystems
//
// Files are accessed through afero, so the jail can live on the host
// filesystem (the default) or any other afero.Fs:
//
//	fs := afero.NewMemMapFs()
//	_ = fs.MkdirAll("/srv", 0755)
//	s, _ := server.NewServer(":2121", server.WithFs(fs), server.WithRoot("/srv"))
package server
