package server

import (
	"strings"
)

func (s *session) handleNOOP(_ string) error {
	s.reply(220, "OK.")
	return nil
}

// handleSYST returns the system type, detected from runtime.GOOS unless
// overridden with WithSystemName.
func (s *session) handleSYST(_ string) error {
	s.reply(215, s.server.systemName)
	return nil
}

// handleHELP lists the enabled commands on a single line.
func (s *session) handleHELP(_ string) error {
	s.reply(211, strings.Join(s.server.commands.enabledVerbs(), ", ")+".")
	return nil
}

// handleOPTS handles the OPTS command. Only "UTF8 ON" is understood; it
// switches the session to UTF-8 and text transfers.
func (s *session) handleOPTS(arg string) error {
	if !strings.EqualFold(strings.Join(strings.Fields(arg), " "), "UTF8 ON") {
		return replyErr(504, "Option not implemented.")
	}
	s.encoding = encodingUTF8
	s.binary = false
	s.reply(200, "UTF8 set to on.")
	return nil
}
