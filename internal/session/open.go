package session

import (
	"context"
	"fmt"
	"time"
)

// Backend names.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	RedisAddr   string
	RedisTTL    time.Duration
	DatabaseURL string
}

// Open returns the configured Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.Dir)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisTTL)
	case BackendPostgres:
		return ConnectPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown session backend %q", opts.Backend)
	}
}
