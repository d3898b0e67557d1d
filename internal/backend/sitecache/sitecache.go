package sitecache

import (
	"context"
	"fmt"
	"time"
)

// SiteCache caches identifier to site lookups. Mappings never change once
// seeded, so entries only expire through the configured TTL.
type SiteCache interface {
	Get(ctx context.Context, identifier string) (site string, found bool, err error)
	Set(ctx context.Context, identifier, site string) error
	Close() error
}

type Config struct {
	Type     string
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

func NewSiteCache(config Config) (SiteCache, error) {
	switch config.Type {
	case "", "none":
		return noopCache{}, nil
	case "redis":
		return NewRedisCache(config)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (noopCache) Set(context.Context, string, string) error          { return nil }
func (noopCache) Close() error                                       { return nil }
