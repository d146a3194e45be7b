package bannedtoken

import (
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"
)

// RepositoryConfig contains configuration for creating a banned token repository
type RepositoryConfig struct {
	RedisClient *red.Client
	KeyPrefix   string
	TTL         time.Duration
}

// NewRepository creates a banned token repository based on the persistence type
func NewRepository(persistenceType string, config RepositoryConfig) (Repository, error) {
	switch persistenceType {
	case "", "memory", "inmem":
		return NewInMemoryRepository(), nil
	case "redis":
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for redis repository")
		}
		return NewRedisRepository(config.RedisClient, config.KeyPrefix, config.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: memory, redis)", persistenceType)
	}
}
