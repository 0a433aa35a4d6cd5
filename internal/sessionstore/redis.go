package sessionstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis keeps slots under "anonchat:session:<namespace>:<slot>". Keys never
// expire; stale sessions are only dropped by validity checks or an explicit clear.
type Redis struct {
	client    *redis.Client
	namespace string
}

func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) key(slot Slot) string {
	return "anonchat:session:" + r.namespace + ":" + string(slot)
}

func (r *Redis) Get(ctx context.Context, slot Slot) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, slot Slot, value []byte) error {
	return r.client.Set(ctx, r.key(slot), value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, slot Slot) error {
	return r.client.Del(ctx, r.key(slot)).Err()
}
