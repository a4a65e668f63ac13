package server

import (
	"slices"
	"strings"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line string
		verb string
		arg  string
	}{
		{"PWD", "PWD", ""},
		{"pwd", "PWD", ""},
		{"QUIT", "QUIT", ""},
		{"MKD sub", "MKD", "sub"},
		{"CWD ../../etc", "CWD", "../../etc"},
		{"USER eps", "USER", "eps"},
		{"RETR file with spaces.txt", "RETR", "file with spaces.txt"},
		{"LIST ", "LIST", ""},
		{"type i", "TYPE", "i"},
		{"ZZ", "ZZ", ""},
		{"STOR a", "STOR", "a"},
	}

	for _, tt := range tests {
		verb, arg := splitCommand(tt.line)
		if verb != tt.verb || arg != tt.arg {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.line, verb, arg, tt.verb, tt.arg)
		}
	}
}

func TestCommandTableDefaults(t *testing.T) {
	table, err := newCommandTable(nil)
	fatalIfErr(t, err, "newCommandTable")

	for _, verb := range []string{"USER", "PASS", "RETR", "STOR", "PORT", "PWD", "CDUP"} {
		if !table[verb].enabled {
			t.Errorf("%s should be enabled", verb)
		}
	}
	for _, verb := range []string{"ACCT", "PASV", "FEAT", "ABOR"} {
		def, ok := table[verb]
		if !ok {
			t.Errorf("%s should be recognized", verb)
		}
		if def.enabled {
			t.Errorf("%s should be disabled", verb)
		}
	}
	if _, ok := table["ZZZZ"]; ok {
		t.Error("ZZZZ should not be recognized")
	}
}

func TestCommandTableDisable(t *testing.T) {
	table, err := newCommandTable(WriteCommands)
	fatalIfErr(t, err, "newCommandTable")

	for _, verb := range WriteCommands {
		if table[verb].enabled {
			t.Errorf("%s should be disabled", verb)
		}
	}
	if !table["RETR"].enabled {
		t.Error("RETR should stay enabled")
	}

	// The base table must not be modified.
	if again, _ := newCommandTable(nil); !again["STOR"].enabled {
		t.Error("disabling leaked into the shared table")
	}
}

func TestCommandTableDisableErrors(t *testing.T) {
	if _, err := newCommandTable([]string{"BOGUS"}); err == nil {
		t.Error("expected error for unknown verb")
	}
	for _, verb := range []string{"USER", "pass", "QUIT"} {
		if _, err := newCommandTable([]string{verb}); err == nil {
			t.Errorf("expected error disabling %s", verb)
		}
	}
}

func TestEnabledVerbs(t *testing.T) {
	table, err := newCommandTable([]string{"DELE"})
	fatalIfErr(t, err, "newCommandTable")

	verbs := table.enabledVerbs()
	if !slices.IsSorted(verbs) {
		t.Errorf("verbs not sorted: %v", verbs)
	}
	if slices.Contains(verbs, "DELE") || slices.Contains(verbs, "ACCT") {
		t.Errorf("disabled verbs listed: %v", verbs)
	}
	if !slices.Contains(verbs, "RETR") {
		t.Errorf("RETR missing: %v", verbs)
	}
}

func TestServerCommands(t *testing.T) {
	s, _ := startTestServer(t, WithDisableCommands("MKD"))

	infos := s.Commands()
	if !slices.IsSortedFunc(infos, func(a, b CommandInfo) int { return strings.Compare(a.Verb, b.Verb) }) {
		t.Error("Commands() not sorted")
	}
	found := map[string]CommandInfo{}
	for _, info := range infos {
		found[info.Verb] = info
	}
	if found["MKD"].Enabled {
		t.Error("MKD should be reported disabled")
	}
	if found["USER"].Login || !found["RETR"].Login {
		t.Error("login requirement reported wrongly")
	}
	if found["RETR"].Argument != "required" || found["LIST"].Argument != "optional" || found["PWD"].Argument != "none" {
		t.Errorf("unexpected arity: RETR=%s LIST=%s PWD=%s", found["RETR"].Argument, found["LIST"].Argument, found["PWD"].Argument)
	}
}
