package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/siskin/internal/config"
	"github.com/matheus3301/siskin/internal/logging"
	"github.com/matheus3301/siskin/internal/profile"
	"github.com/matheus3301/siskin/internal/tui"
	"github.com/matheus3301/siskin/internal/tui/client"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	accountFlag := flag.String("account", "", "account JID (overrides config account)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	account := profile.ResolveAccount(*accountFlag, cfg)
	if account != "" {
		if err := profile.ValidateAccount(account); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := logging.NewFileOnly(profile.LogPath(profileName, "siskintui"), profileName, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	c, err := client.New(profile.SocketPath(profileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(c, 2*time.Second) {
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", profileName)
		if err := startDaemon(profileName, *accountFlag); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(c, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	app, err := tui.NewApp(c, tui.Options{
		Profile: profileName,
		Account: account,
		Config:  cfg,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("tui started", zap.String("account", account))
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon checks that the daemon answers a status call.
func probeDaemon(c *client.Client, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := c.Status(ctx, false)
	return err == nil
}

func startDaemon(profileName, account string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	siskind := filepath.Join(filepath.Dir(executable), "siskind")

	if _, err := os.Stat(siskind); err != nil {
		siskind = "siskind"
	}

	args := []string{"--profile", profileName}
	if account != "" {
		args = append(args, "--account", account)
	}
	cmd := exec.Command(siskind, args...)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon blocks on a status call that waits for the socket to come up.
func waitForDaemon(c *client.Client, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := c.Status(ctx, true)
	return err == nil
}
