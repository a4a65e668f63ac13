// Command ftpd serves a directory over FTP, active mode only, with every
// client jailed to that directory.
//
// Usage:
//
//	ftpd [flags]
//
// Every flag can also be set through an FTPD_ environment variable
// (FTPD_ROOT, FTPD_IDLE_TIMEOUT, ...) or a config file given with
// --config. Run with --help for the full list, or --list-commands to see
// which FTP commands are enabled.
package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/gonzalop/ftpd/internal/config"
	"github.com/gonzalop/ftpd/internal/logging"
	"github.com/gonzalop/ftpd/server"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, color.RedString("ftpd: %v", err))
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.Load(config.NewFlagSet("ftpd"), args)
	if err != nil {
		return err
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	var transferLog io.Writer
	if cfg.TransferLog != "" {
		f, err := os.OpenFile(cfg.TransferLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening transfer log: %w", err)
		}
		defer f.Close()
		transferLog = f
	}

	opts, err := cfg.ServerOptions(log, transferLog)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(cfg.Listen, opts...)
	if err != nil {
		return err
	}

	if cfg.ListCommands {
		return printCommands(stdout, srv.Commands())
	}

	if err := srv.Start(); err != nil {
		return err
	}
	printBanner(stdout, cfg, srv.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	stopped := make(chan error, 1)
	go func() { stopped <- srv.Wait() }()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
		if err := srv.Stop(); err != nil {
			log.WithError(err).Warn("Error stopping server")
		}
		return <-stopped
	case err := <-stopped:
		log.WithError(err).Error("Server error")
		return err
	}
}

// printCommands renders the command table.
func printCommands(w io.Writer, cmds []server.CommandInfo) error {
	table := tablewriter.NewWriter(w)
	table.Header("Verb", "Enabled", "Argument", "Login")
	for _, c := range cmds {
		if err := table.Append([]string{c.Verb, yesNo(c.Enabled), c.Argument, yesNo(c.Login)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// printBanner summarizes the running configuration.
func printBanner(w io.Writer, cfg *config.Config, addr net.Addr) {
	title := color.New(color.FgCyan, color.Bold)
	key := color.New(color.FgYellow)

	title.Fprintln(w, "ftpd ready")
	line := func(k, v string) {
		key.Fprintf(w, "  %-12s", k)
		fmt.Fprintln(w, v)
	}
	line("listening", addr.String())
	line("root", cfg.Root)
	line("users", strings.Join(userNames(cfg.Users), ", "))
	line("data port", strconv.Itoa(cfg.DataPort))
	if disabled := cfg.DisabledCommands(); len(disabled) > 0 {
		line("disabled", strings.Join(disabled, " "))
	}
	if cfg.BandwidthLimit > 0 {
		line("bandwidth", fmt.Sprintf("%d B/s", cfg.BandwidthLimit))
	}
	if cfg.ConfigFile != "" {
		line("config", cfg.ConfigFile)
	}
	if cfg.ReadOnly {
		color.New(color.FgGreen).Fprintln(w, "  read-only mode")
	}
	if strings.EqualFold(cfg.LogLevel, "debug") {
		color.New(color.FgMagenta).Fprintln(w, "  debug logging enabled")
	}
}

// userNames strips the secrets from user:secret entries.
func userNames(entries []string) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name, _, _ := strings.Cut(e, ":")
		names = append(names, name)
	}
	return names
}
