package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sopdesk/internal/store"
	boltstore "github.com/wolfeidau/sopdesk/internal/store/bolt"
	memorystore "github.com/wolfeidau/sopdesk/internal/store/memory"
	postgresstore "github.com/wolfeidau/sopdesk/internal/store/postgres"
)

type StoreFlags struct {
	Type     string             `help:"store type (memory, bolt, or postgres)" default:"memory" env:"SOPDESK_STORE_TYPE" enum:"memory,bolt,postgres"`
	BoltPath string             `help:"path to the bolt database file" default:"sopdesk.db" env:"SOPDESK_BOLT_PATH"`
	Postgres PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (s *StoreFlags) Validate() error {
	switch s.Type {
	case "postgres":
		return s.Postgres.Validate()
	case "bolt":
		if s.BoltPath == "" {
			return errors.New("bolt database path is required (--store-bolt-path or SOPDESK_BOLT_PATH)")
		}
	}
	return nil
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"SOPDESK_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--store-postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if s.MinConns > s.MaxConns {
		return fmt.Errorf("min connections (%d) cannot exceed max connections (%d)", s.MinConns, s.MaxConns)
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: time.Duration(s.MaxConnLifetime) * time.Second,
		MaxConnIdleTime: time.Duration(s.MaxConnIdleTime) * time.Second,
	}
}

// openStore creates the document store selected by the flags. migrate forces
// migrations on postgres regardless of AutoMigrate.
func openStore(ctx context.Context, flags *StoreFlags, migrate bool) (store.DocumentStore, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	switch flags.Type {
	case "postgres":
		pool, err := postgresstore.NewPool(ctx, flags.Postgres.poolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if migrate || flags.Postgres.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL document store")
		return postgresstore.NewDocumentStore(pool), nil

	case "bolt":
		docs, err := boltstore.Open(flags.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", flags.BoltPath).Msg("Using bolt document store")
		return docs, nil

	default:
		log.Info().Msg("Using in-memory document store")
		return memorystore.NewDocumentStore(), nil
	}
}
