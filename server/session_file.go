package server

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// resolveArg resolves a client path against the working directory.
func (s *session) resolveArg(arg string) ([]string, error) {
	segs, err := resolve(s.cwd, arg)
	if err != nil {
		return nil, errOutsideRoot(err)
	}
	return segs, nil
}

// statDir returns an error unless p is an existing directory.
func (s *session) statDir(p string) error {
	info, err := s.server.jail.Stat(p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", p, errNotDir)
	}
	return nil
}

var errNotDir = errors.New("not a directory")

// quotePath renders a path for a 257 reply, doubling embedded quotes.
func quotePath(p string) string {
	return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
}

func (s *session) handlePWD(_ string) error {
	s.reply(257, quotePath(virtualPath(s.cwd))+" is the current directory.")
	return nil
}

func (s *session) handleCWD(path string) error {
	return s.changeDir(path, 250)
}

func (s *session) handleCDUP(_ string) error {
	return s.changeDir("..", 200)
}

func (s *session) changeDir(path string, code int) error {
	segs, err := s.resolveArg(path)
	if err != nil {
		return err
	}
	if err := s.statDir(virtualPath(segs)); err != nil {
		return wrapReply(501, "No such directory.", err)
	}
	s.cwd = segs
	s.reply(code, "Directory successfully changed.")
	return nil
}

func (s *session) handleMKD(path string) error {
	segs, err := s.resolveArg(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return replyErr(450, "Directory already exists.")
	}
	if err := s.statDir(virtualPath(segs[:len(segs)-1])); err != nil {
		return errNoSuchFile(err)
	}
	p := virtualPath(segs)
	if ok, _ := afero.Exists(s.server.jail, p); ok {
		return replyErr(450, "Directory already exists.")
	}
	if err := s.server.jail.Mkdir(p, 0755); err != nil {
		return wrapReply(450, "Could not create directory.", err)
	}
	// Security audit: directory created
	s.log.WithField("user", s.user).WithField("path", p).Info("directory_created")
	s.reply(250, quotePath(p)+" created.")
	return nil
}

func (s *session) handleRMD(path string) error {
	segs, err := s.resolveArg(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return replyErr(450, "Cannot remove the root directory.")
	}
	p := virtualPath(segs)
	info, err := s.server.jail.Stat(p)
	if err != nil {
		return errNoSuchFile(err)
	}
	if !info.IsDir() {
		return replyErr(450, "Not a directory.")
	}
	if isPrefix(segs, s.cwd) {
		return replyErr(450, "Cannot remove the current directory.")
	}
	if empty, err := afero.IsEmpty(s.server.jail, p); err != nil || !empty {
		return wrapReply(450, "Directory not empty.", err)
	}
	if err := s.server.jail.Remove(p); err != nil {
		return wrapReply(450, "Could not remove directory.", err)
	}
	// Security audit: directory removed
	s.log.WithField("user", s.user).WithField("path", p).Info("directory_removed")
	s.reply(250, "Directory removed.")
	return nil
}

func (s *session) handleDELE(path string) error {
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
	if err := s.server.jail.Remove(p); err != nil {
		return wrapReply(450, "Could not delete file.", err)
	}
	// Security audit: file deleted
	s.log.WithField("user", s.user).WithField("path", p).Info("file_deleted")
	s.reply(250, "File deleted.")
	return nil
}

func (s *session) handleRNFR(path string) error {
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
		return replyErr(450, "Only files can be renamed.")
	}

	s.renameFrom = p
	s.reply(350, "Requested file action pending further information.")
	return nil
}

func (s *session) handleRNTO(path string) error {
	if s.renameFrom == "" {
		return replyErr(503, "Bad sequence of commands. Send RNFR first.")
	}
	from := s.renameFrom
	s.renameFrom = ""

	segs, err := s.resolveArg(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return replyErr(450, "Cannot rename over the root directory.")
	}
	if err := s.statDir(virtualPath(segs[:len(segs)-1])); err != nil {
		return errNoSuchFile(err)
	}
	to := virtualPath(segs)
	if info, err := s.server.jail.Stat(to); err == nil && info.IsDir() {
		return replyErr(450, "Target is a directory.")
	}
	if err := s.server.jail.Rename(from, to); err != nil {
		if os.IsNotExist(err) {
			return errNoSuchFile(err)
		}
		return wrapReply(450, "Rename failed.", err)
	}

	s.log.WithField("user", s.user).WithField("from", from).WithField("to", to).Info("file_renamed")
	s.reply(250, "Requested file action successful, file renamed.")
	return nil
}
