package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"rednote/pkg/config"
	"rednote/pkg/logger"
)

// CookieDomain scopes cookies read from the environment.
const CookieDomain = ".xiaohongshu.com"

// NewStore builds the CookieStore selected by cfg.Session.CookieStore.
// Stores holding network resources implement io.Closer.
func NewStore(ctx context.Context, cfg *config.Config, log logger.Logger) (CookieStore, error) {
	switch strings.ToLower(cfg.Session.CookieStore) {
	case "", "file":
		return NewFileStore(cfg.Session.CookiePath), nil

	case "encrypted":
		es, err := NewEncryptedFileStore(encryptedPath(cfg.Session.CookiePath), "")
		if err != nil {
			return nil, err
		}
		return es, nil

	case "keyring":
		file := NewFileStore(cfg.Session.CookiePath)
		ks, err := NewKeyringStore(cfg.Session.Profile)
		if err != nil {
			log.WithError(err).Warn("keyring unavailable, falling back to cookie file")
			return NewChainStore(file, NewEnvironmentStore(CookieDomain)), nil
		}
		return NewChainStore(ks, file, NewEnvironmentStore(CookieDomain)), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := &closingRedisStore{RedisStore: NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Session.Profile), client: client}
		if err := rs.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		return rs, nil

	default:
		return nil, fmt.Errorf("unknown cookie store %q", cfg.Session.CookieStore)
	}
}

func encryptedPath(path string) string {
	if strings.HasSuffix(path, ".json") {
		return strings.TrimSuffix(path, ".json") + ".enc"
	}
	return path + ".enc"
}

type closingRedisStore struct {
	*RedisStore
	client *redis.Client
}

func (c *closingRedisStore) Close() error {
	return c.client.Close()
}
