package commands

import (
	"context"
	"errors"

	"github.com/wolfeidau/sopdesk/internal/logger"
)

type MigrateCmd struct {
	Store StoreFlags `embed:"" prefix:"store-"`
}

// Run applies pending PostgreSQL migrations and exits.
func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	if c.Store.Type != "postgres" {
		return errors.New("migrations only apply to the postgres store (--store-type=postgres)")
	}

	docs, err := openStore(ctx, &c.Store, true)
	if err != nil {
		return err
	}

	log.Info().Msg("Migrations applied")

	return docs.Close()
}
