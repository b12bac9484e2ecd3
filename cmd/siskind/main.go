package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/siskin/internal/config"
	"github.com/matheus3301/siskin/internal/daemon"
	"github.com/matheus3301/siskin/internal/profile"
	"go.uber.org/fx"
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

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			Account:     account,
			Config:      cfg,
		}),
	)

	app.Run()
}
