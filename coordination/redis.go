package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Redis is a Store backed by a shared Redis instance, the real multi-process
// "coordination store" spec.md §1/§6 describes. The process mutex is
// implemented with the standard SET key value NX PX ttl pattern (one key per
// Redis instance, shared across every process using it), and release is a
// compare-and-delete Lua script so a process can never release a mutex it
// doesn't hold.
type Redis struct {
	client   *redis.Client
	mutexKey string
}

// NewRedis wraps an existing *redis.Client. mutexKey is the key used for the
// process-wide mutex; every process sharing this database must agree on it.
func NewRedis(client *redis.Client, mutexKey string) *Redis {
	return &Redis{client: client, mutexKey: mutexKey}
}

func (r *Redis) GetProperty(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) SetProperty(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *Redis) DeleteProperty(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// releaseScript deletes mutexKey only if its value still matches the given
// handle, so a process can never release a lease it has already lost (e.g.
// to expiry followed by another process's acquisition).
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

func (r *Redis) TryAcquireProcessMutex(ctx context.Context, timeoutMs int) (MutexHandle, bool, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	handle := MutexHandle(uuid.NewString())

	const leaseTTL = 30 * time.Second
	const pollInterval = 25 * time.Millisecond

	for {
		ok, err := r.client.SetNX(ctx, r.mutexKey, string(handle), leaseTTL).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return handle, true, nil
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (r *Redis) ReleaseProcessMutex(ctx context.Context, handle MutexHandle) error {
	return releaseScript.Run(ctx, r.client, []string{r.mutexKey}, string(handle)).Err()
}
