package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/wolfeidau/sopdesk/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"SOPDESK_DEBUG"`
		Version kong.VersionFlag
		Server  commands.ServerCmd  `cmd:"" default:"1" help:"Start the API server"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply PostgreSQL migrations"`
		Token   commands.TokenCmd   `cmd:"" help:"Issue an access token for a registration"`
	}
)

func main() {
	// a .env file is optional, values already in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
