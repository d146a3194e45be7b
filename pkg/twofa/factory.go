package twofa

import (
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"
)

// RepositoryConfig contains configuration for creating a challenge repository
type RepositoryConfig struct {
	// DataDir is required for file-based repositories
	DataDir string
	// RedisClient is required for redis repositories
	RedisClient *red.Client
	KeyPrefix   string
	// TTL expires challenges; zero keeps them until used or replaced
	TTL time.Duration
}

// NewChallengeRepository creates a challenge repository based on the persistence type
func NewChallengeRepository(persistenceType string, config RepositoryConfig) (ChallengeRepository, error) {
	switch persistenceType {
	case "", "memory", "inmem":
		return NewInMemoryChallengeRepository(WithChallengeTTL(config.TTL)), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileChallengeRepository(config.DataDir, config.TTL)
	case "redis":
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for redis repository")
		}
		return NewRedisChallengeRepository(config.RedisClient, config.KeyPrefix, config.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: memory, file, redis)", persistenceType)
	}
}
