package kvstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
)

// Type names a store implementation.
type Type string

const (
	TypeMemory     Type = "memory"
	TypeFilesystem Type = "filesystem"
	TypeBadger     Type = "badger"
	TypeSQLite     Type = "sqlite"
	TypePostgres   Type = "postgres"
	TypeRedis      Type = "redis"
)

// Config selects and configures a store implementation.
type Config struct {
	Type Type
	// Path is the directory (filesystem, badger) or database file (sqlite).
	Path string
	// DSN is the PostgreSQL connection string.
	DSN   string
	Redis RedisConfig
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeFilesystem, "":
		return NewFilesystemStore(cfg.Path)
	case TypeBadger:
		path := cfg.Path
		if path == "" {
			path = filepath.Join(core.DataRoot(), "badger")
		}
		return NewBadgerStore(path)
	case TypeSQLite:
		path := cfg.Path
		if path == "" {
			path = filepath.Join(core.DataRoot(), "homeiq.db")
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db)
	case TypePostgres:
		db, err := OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db)
	case TypeRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
