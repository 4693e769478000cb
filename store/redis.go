package store

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// RedisStore persists each namespace as one Redis hash, keyed
// "tracker:<namespace>". It lets the tracker state survive process
// restarts when running as a gateway service rather than on bare metal.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to the Redis instance at url (redis://host:port)
// and verifies it is reachable.
func NewRedis(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis unreachable")
	}

	return &RedisStore{client: client}, nil
}

// Namespace opens a handle onto the hash backing the named partition.
func (s *RedisStore) Namespace(name string) (Namespace, error) {
	return &redisNamespace{client: s.client, hash: "tracker:" + name}, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisNamespace struct {
	client *redis.Client
	hash   string
	closed bool
}

func (n *redisNamespace) get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	v, err := n.client.HGet(ctx, n.hash, key).Result()
	if err != nil {
		// redis.Nil is an ordinary miss; anything else degrades to the
		// caller's default as well, matching the flash-store contract.
		return "", false
	}
	return v, true
}

func (n *redisNamespace) put(key, value string) error {
	if n.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := n.client.HSet(ctx, n.hash, key, value).Err(); err != nil {
		return errors.Wrapf(err, "cannot write %s.%s", n.hash, key)
	}
	return nil
}

func (n *redisNamespace) GetString(key, def string) string {
	if v, ok := n.get(key); ok {
		return v
	}
	return def
}

func (n *redisNamespace) PutString(key, value string) error {
	return n.put(key, value)
}

func (n *redisNamespace) GetBool(key string, def bool) bool {
	if v, ok := n.get(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (n *redisNamespace) PutBool(key string, value bool) error {
	return n.put(key, strconv.FormatBool(value))
}

func (n *redisNamespace) GetUint32(key string, def uint32) uint32 {
	if v, ok := n.get(key); ok {
		if u, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(u)
		}
	}
	return def
}

func (n *redisNamespace) PutUint32(key string, value uint32) error {
	return n.put(key, strconv.FormatUint(uint64(value), 10))
}

func (n *redisNamespace) GetUint8(key string, def uint8) uint8 {
	if v, ok := n.get(key); ok {
		if u, err := strconv.ParseUint(v, 10, 8); err == nil {
			return uint8(u)
		}
	}
	return def
}

func (n *redisNamespace) PutUint8(key string, value uint8) error {
	return n.put(key, strconv.FormatUint(uint64(value), 10))
}

func (n *redisNamespace) GetFloat64(key string, def float64) float64 {
	if v, ok := n.get(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (n *redisNamespace) PutFloat64(key string, value float64) error {
	return n.put(key, strconv.FormatFloat(value, 'f', -1, 64))
}

func (n *redisNamespace) Clear() error {
	if n.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := n.client.Del(ctx, n.hash).Err(); err != nil {
		return errors.Wrapf(err, "cannot clear %s", n.hash)
	}
	return nil
}

func (n *redisNamespace) Close() error {
	n.closed = true
	return nil
}
