package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownUser is returned by an Authenticator for a name it does
	// not know.
	ErrUnknownUser = errors.New("unknown user")

	// ErrBadPassword is returned by an Authenticator when the secret does
	// not match.
	ErrBadPassword = errors.New("invalid password")
)

// Authenticator validates client credentials.
//
// Lookup is consulted on USER so unknown names can be refused before a
// password is requested. Authenticate is consulted on PASS.
// Implementations must be safe for concurrent use; every session shares
// the server's Authenticator.
type Authenticator interface {
	Lookup(user string) bool
	Authenticate(user, secret string) error
}

// CredentialTable is a static, read-only Authenticator mapping user names
// to secrets.
type CredentialTable map[string]string

// DefaultCredentials returns the table used when no Authenticator is
// configured: a single account "eps" with secret "eps".
func DefaultCredentials() CredentialTable {
	return CredentialTable{"eps": "eps"}
}

// ParseCredentials builds a table from "user:secret" entries.
func ParseCredentials(entries []string) (CredentialTable, error) {
	table := make(CredentialTable, len(entries))
	for _, e := range entries {
		user, secret, ok := strings.Cut(e, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("invalid credential %q: want user:secret", e)
		}
		if _, dup := table[user]; dup {
			return nil, fmt.Errorf("duplicate credential for user %q", user)
		}
		table[user] = secret
	}
	return table, nil
}

func (c CredentialTable) Lookup(user string) bool {
	_, ok := c[user]
	return ok
}

func (c CredentialTable) Authenticate(user, secret string) error {
	want, ok := c[user]
	if !ok {
		return ErrUnknownUser
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(secret)) != 1 {
		return ErrBadPassword
	}
	return nil
}
