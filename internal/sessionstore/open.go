package sessionstore

import (
	"anonchat/app/internal/config"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Open builds the store selected by cfg.SessionStore.
func Open(cfg *config.ClientConfig) (Store, error) {
	switch cfg.SessionStore {
	case "", "file":
		return NewFile(cfg.SessionStorePath)
	case "memory":
		return NewMemory(), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return NewRedis(redis.NewClient(opts), cfg.RedisNamespace), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
}
