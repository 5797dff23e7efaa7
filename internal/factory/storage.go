// Package factory builds the service's concrete dependencies from config.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/config"
	storepkg "github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
	storepg "github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store/postgres"
	storelite "github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store/sqlite"
)

// NewStore opens the configured database and returns a store.Store.
// SQLite gets its schema applied in-process; Postgres schemas are owned
// by external migrations.
func NewStore(cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := storelite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := storelite.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return storelite.NewWithDB(db), nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("STORYTIME_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("postgres store ready")
		return storepg.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
