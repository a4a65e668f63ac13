package server

import (
	"errors"
	"testing"
)

func TestCredentialTable(t *testing.T) {
	table := DefaultCredentials()

	if !table.Lookup("eps") {
		t.Error("eps should be known")
	}
	if table.Lookup("root") {
		t.Error("root should be unknown")
	}
	if err := table.Authenticate("eps", "eps"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if err := table.Authenticate("eps", "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Errorf("expected ErrBadPassword, got %v", err)
	}
	if err := table.Authenticate("root", "eps"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
}

func TestParseCredentials(t *testing.T) {
	table, err := ParseCredentials([]string{"alice:secret", "bob:pa:ss", "carol:"})
	fatalIfErr(t, err, "ParseCredentials")

	if err := table.Authenticate("bob", "pa:ss"); err != nil {
		t.Errorf("secret containing a colon: %v", err)
	}
	if err := table.Authenticate("carol", ""); err != nil {
		t.Errorf("empty secret: %v", err)
	}

	for _, bad := range [][]string{{"nocolon"}, {":secret"}, {"a:1", "a:2"}} {
		if _, err := ParseCredentials(bad); err == nil {
			t.Errorf("ParseCredentials(%q) should fail", bad)
		}
	}
}
