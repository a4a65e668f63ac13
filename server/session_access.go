package server

import "errors"

// handleUSER starts a login. It always drops any previous login, and
// refuses names the authenticator does not know.
func (s *session) handleUSER(user string) error {
	s.loggedIn = false
	s.user = ""
	s.pendingUser = ""

	if !s.server.auth.Lookup(user) {
		s.log.WithField("user", user).Warn("authentication_failed")
		if s.server.metricsCollector != nil {
			s.server.metricsCollector.RecordAuthentication(false, user)
		}
		return replyErr(530, "Not logged in.")
	}

	s.pendingUser = user
	s.reply(331, "User name okay, need password.")
	return nil
}

func (s *session) handlePASS(pass string) error {
	if s.pendingUser == "" {
		return replyErr(503, "Bad sequence of commands. Send USER first.")
	}
	user := s.pendingUser
	s.pendingUser = ""

	err := s.server.throttle.check(s.remoteIP)
	if err == nil {
		err = s.server.auth.Authenticate(user, pass)
		if err != nil && s.server.throttle.fail(s.remoteIP) {
			s.log.WithField("user", user).Warn("login_locked_out")
		}
	}
	if err != nil {
		// Security audit: failed authentication
		s.log.WithField("user", user).WithField("reason", err.Error()).Warn("authentication_failed")
		if s.server.metricsCollector != nil {
			s.server.metricsCollector.RecordAuthentication(false, user)
		}
		if errors.Is(err, ErrLockedOut) {
			return wrapReply(530, "Not logged in: too many failed attempts.", err)
		}
		return wrapReply(530, "Login incorrect.", err)
	}

	s.server.throttle.reset(s.remoteIP)
	s.loggedIn = true
	s.user = user
	// Security audit: successful authentication
	s.log.WithField("user", user).Info("authentication_success")
	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordAuthentication(true, user)
	}
	s.reply(230, "User logged in, proceed.")
	return nil
}

// handleREIN logs the client out and restores every session default.
func (s *session) handleREIN(_ string) error {
	s.log.WithField("user", s.user).Info("session_reinitialized")
	s.resetState()
	s.reply(220, "Service ready for new user.")
	return nil
}

func (s *session) handleQUIT(_ string) error {
	s.quit = true
	s.reply(221, "Service closing control connection.")
	return nil
}
