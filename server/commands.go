package server

import (
	"fmt"
	"slices"
	"strings"
)

// Predefined command groups for use with WithDisableCommands.
//
// Example usage:
//
//	// Create a read-only server
//	srv, _ := server.NewServer(":21",
//	    server.WithRoot("/srv/ftp"),
//	    server.WithDisableCommands(server.WriteCommands...),
//	)
var (
	// ActiveModeCommands contains the command that configures active mode
	// data connections. Disabling it pins transfers to the default data
	// port on the client's address.
	ActiveModeCommands = []string{
		"PORT",
	}

	// WriteCommands contains all commands that modify the filesystem.
	//
	// Use case: disable these to serve a read-only tree.
	WriteCommands = []string{
		"STOR", // Store file
		"APPE", // Append to file
		"DELE", // Delete file
		"RMD",  // Remove directory
		"MKD",  // Make directory
		"RNFR", // Rename from
		"RNTO", // Rename to
	}

	// ListingCommands contains the directory listing commands.
	ListingCommands = []string{
		"LIST",
		"NLST",
	}
)

// arity describes whether a command takes an argument.
type arity int

const (
	argNone arity = iota
	argOptional
	argRequired
)

func (a arity) String() string {
	switch a {
	case argOptional:
		return "optional"
	case argRequired:
		return "required"
	}
	return "none"
}

// commandDef is one entry of the command table. A nil handler marks a
// verb that is recognized but never enabled.
type commandDef struct {
	handler func(*session, string) error
	arity   arity
	public  bool // allowed before login
	enabled bool
}

// commandHandlers lists every verb the server recognizes.
var commandHandlers = map[string]commandDef{
	// Access control
	"USER": {handler: (*session).handleUSER, arity: argRequired, public: true},
	"PASS": {handler: (*session).handlePASS, arity: argOptional, public: true},
	"REIN": {handler: (*session).handleREIN, arity: argNone, public: true},
	"QUIT": {handler: (*session).handleQUIT, arity: argNone, public: true},

	// Information
	"NOOP": {handler: (*session).handleNOOP, arity: argNone, public: true},
	"SYST": {handler: (*session).handleSYST, arity: argNone, public: true},
	"HELP": {handler: (*session).handleHELP, arity: argNone, public: true},
	"OPTS": {handler: (*session).handleOPTS, arity: argRequired, public: true},

	// Transfer parameters
	"TYPE": {handler: (*session).handleTYPE, arity: argRequired},
	"PORT": {handler: (*session).handlePORT, arity: argRequired},

	// Navigation
	"CWD":  {handler: (*session).handleCWD, arity: argRequired},
	"CDUP": {handler: (*session).handleCDUP, arity: argNone},
	"PWD":  {handler: (*session).handlePWD, arity: argNone},

	// File transfer
	"LIST": {handler: (*session).handleLIST, arity: argOptional},
	"NLST": {handler: (*session).handleNLST, arity: argOptional},
	"RETR": {handler: (*session).handleRETR, arity: argRequired},
	"STOR": {handler: (*session).handleSTOR, arity: argRequired},
	"APPE": {handler: (*session).handleAPPE, arity: argRequired},

	// File management
	"RNFR": {handler: (*session).handleRNFR, arity: argRequired},
	"RNTO": {handler: (*session).handleRNTO, arity: argRequired},
	"DELE": {handler: (*session).handleDELE, arity: argRequired},
	"RMD":  {handler: (*session).handleRMD, arity: argRequired},
	"MKD":  {handler: (*session).handleMKD, arity: argRequired},

	// Recognized, not implemented.
	"ACCT": {},
	"FEAT": {public: true},
	"PASV": {},
	"EPSV": {},
	"EPRT": {},
	"ABOR": {},
	"REST": {},
	"MODE": {},
	"STRU": {},
	"STOU": {},
	"SITE": {},
	"STAT": {},
	"SMNT": {},
	"ALLO": {},
	"SIZE": {},
	"MDTM": {},
}

// bareThreeLetter holds the three letter verbs that may be sent with no
// trailing space or argument.
var bareThreeLetter = map[string]bool{
	"PWD": true,
}

// mandatoryCommands can never be disabled.
var mandatoryCommands = []string{"USER", "PASS", "QUIT"}

// commandTable is the per-server, read-only view of commandHandlers with
// operator-disabled verbs switched off.
type commandTable map[string]commandDef

func newCommandTable(disabled []string) (commandTable, error) {
	table := make(commandTable, len(commandHandlers))
	for verb, def := range commandHandlers {
		def.enabled = def.handler != nil
		table[verb] = def
	}
	for _, verb := range disabled {
		verb = strings.ToUpper(strings.TrimSpace(verb))
		def, ok := table[verb]
		if !ok {
			return nil, fmt.Errorf("cannot disable unknown command %q", verb)
		}
		if slices.Contains(mandatoryCommands, verb) {
			return nil, fmt.Errorf("command %s cannot be disabled", verb)
		}
		def.enabled = false
		table[verb] = def
	}
	return table, nil
}

// enabledVerbs returns the enabled verbs in alphabetical order.
func (t commandTable) enabledVerbs() []string {
	var verbs []string
	for verb, def := range t {
		if def.enabled {
			verbs = append(verbs, verb)
		}
	}
	slices.Sort(verbs)
	return verbs
}

// CommandInfo describes one entry of a server's command table.
type CommandInfo struct {
	Verb    string
	Enabled bool
	// Argument is "none", "optional" or "required".
	Argument string
	// Login reports whether the command requires an authenticated session.
	Login bool
}

// Commands returns the server's command table sorted by verb.
func (s *Server) Commands() []CommandInfo {
	out := make([]CommandInfo, 0, len(s.commands))
	for verb, def := range s.commands {
		out = append(out, CommandInfo{
			Verb:     verb,
			Enabled:  def.enabled,
			Argument: def.arity.String(),
			Login:    !def.public,
		})
	}
	slices.SortFunc(out, func(a, b CommandInfo) int {
		return strings.Compare(a.Verb, b.Verb)
	})
	return out
}

// splitCommand extracts the verb and argument from a control line. Verbs
// are three or four letters: when the fourth character is a space the
// verb is the first three and the argument starts after that space,
// otherwise the verb is four characters long and the argument starts at
// the sixth. The verb is upper-cased.
func splitCommand(line string) (verb, arg string) {
	if len(line) <= 3 {
		return strings.ToUpper(line), ""
	}
	if line[3] == ' ' {
		return strings.ToUpper(line[:3]), line[4:]
	}
	verb = strings.ToUpper(line[:4])
	if len(line) > 5 {
		arg = line[5:]
	}
	return verb, arg
}
