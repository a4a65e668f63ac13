package server

import (
	"errors"
	"os"

	"github.com/samber/oops"
)

// errorDomain tags every reply-carrying error built by this package.
const errorDomain = "ftp"

// replyErr builds an error that is answered with code and msg when it
// reaches the command dispatcher.
func replyErr(code int, msg string) error {
	return oops.In(errorDomain).Code(code).Public(msg).New(msg)
}

// wrapReply is like replyErr but keeps cause for logging.
func wrapReply(code int, msg string, cause error) error {
	if cause == nil {
		return replyErr(code, msg)
	}
	return oops.In(errorDomain).Code(code).Public(msg).Wrap(cause)
}

// replyFor chooses the reply for an error returned by a handler. Errors
// not built with replyErr fall back on their os classification.
func replyFor(err error) (int, string) {
	if oe, ok := oops.AsOops(err); ok {
		if code, ok := oe.Code().(int); ok {
			return code, oops.GetPublic(err, "Requested action not taken.")
		}
	}
	switch {
	case errors.Is(err, ErrEscapesRoot):
		return 450, msgOutsideRoot
	case os.IsNotExist(err):
		return 501, msgNoSuchFile
	case os.IsPermission(err):
		return 450, "Requested action not taken: permission denied."
	case os.IsExist(err):
		return 450, "Requested action not taken: file exists."
	}
	return 450, "Requested action not taken."
}

const (
	msgOutsideRoot = "Requested action not taken: path outside root directory."
	msgNoSuchFile  = "No such file or directory."
	msgNotLoggedIn = "Please login with USER and PASS."
	msgSyntax      = "Parameter syntax error."
	msgNoDataConn  = "Can't open data connection."
)

func errOutsideRoot(cause error) error {
	return wrapReply(450, msgOutsideRoot, cause)
}

func errNoSuchFile(cause error) error {
	return wrapReply(501, msgNoSuchFile, cause)
}
