package kvstore

import (
	"fmt"

	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/common/enum"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

// NewFromConfig constructs an infra.KVStore based on kvstore configuration.
func NewFromConfig(cfg config.KVStoreConfig, environment string) (infra.KVStore, error) {
	switch cfg.Type {
	case enum.KVStoreTypeBadger:
		return NewBadgerStore(cfg.Badger.Directory, cfg.Badger.Prefix, infra.JSON)
	case enum.KVStoreTypeRedis:
		client, err := infra.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, environment)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.Redis.Prefix, infra.JSON), nil
	case enum.KVStoreTypeMemory:
		return NewMemoryStore(infra.JSON), nil
	default:
		return nil, fmt.Errorf("unsupported kvstore type: %s", cfg.Type)
	}
}
