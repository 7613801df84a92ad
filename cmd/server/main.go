package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/wolfeidau/orgtenant/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool               `help:"Enable debug mode." env:"ORGTENANT_DEBUG"`
		Config  kong.ConfigFlag    `help:"Path to a YAML configuration file." type:"existingfile"`
		Version kong.VersionFlag   `help:"Print the version and exit."`
		Server  commands.ServerCmd `cmd:"" default:"withargs" help:"Start the organization management API"`
	}
)

func main() {
	// A missing .env file is fine; values then come from the environment or flags.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("orgtenant"),
		kong.Description("Multi-tenant organization management service."),
		kong.Configuration(commands.YAMLResolver, "/etc/orgtenant/config.yaml", "~/.config/orgtenant/config.yaml"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
