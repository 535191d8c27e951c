package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fystack/taixiu-predictor/pkg/common/enum"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

const redisOpTimeout = 3 * time.Second

type RedisStore struct {
	client *redis.Client
	prefix string
	codec  infra.Codec
}

func NewRedisStore(client *redis.Client, prefix string, codec infra.Codec) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, codec: codec}
}

func (r *RedisStore) GetName() string {
	return string(enum.KVStoreTypeRedis)
}

func (r *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (r *RedisStore) get(k string) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	b, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return b, err
}

func (r *RedisStore) Get(key string) (string, error) {
	k, err := joinKey(r.prefix, key)
	if err != nil {
		return "", err
	}
	b, err := r.get(k)
	return string(b), err
}

func (r *RedisStore) Set(key string, value string) error {
	k, err := joinKey(r.prefix, key)
	if err != nil {
		return err
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Set(ctx, k, value, 0).Err()
}

func (r *RedisStore) SetAny(key string, value any) error {
	if err := checkKeyAndValue(key, value); err != nil {
		return err
	}
	k, err := joinKey(r.prefix, key)
	if err != nil {
		return err
	}
	data, err := r.codec.Marshal(value)
	if err != nil {
		return err
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Set(ctx, k, data, 0).Err()
}

func (r *RedisStore) GetAny(key string, value any) (bool, error) {
	if err := checkKeyAndValue(key, value); err != nil {
		return false, err
	}
	k, err := joinKey(r.prefix, key)
	if err != nil {
		return false, err
	}
	data, err := r.get(k)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, r.codec.Unmarshal(data, value)
}

// List walks the keyspace with SCAN and fetches the matches in one MGET.
func (r *RedisStore) List(prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}
	searchPrefix, _ := joinKey(r.prefix, prefix)

	ctx, cancel := r.ctx()
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, searchPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	result := make([]*infra.KVPair, 0, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		result = append(result, &infra.KVPair{Key: stripKey(r.prefix, keys[i]), Value: []byte(s)})
	}
	return result, nil
}

func (r *RedisStore) Delete(key string) error {
	k, err := joinKey(r.prefix, key)
	if err != nil {
		return err
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Del(ctx, k).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
