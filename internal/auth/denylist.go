package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tokens is the process-wide denylist. Nil when no Redis address is
// configured, in which case logout cannot revoke tokens early and they
// simply age out.
var Tokens *Denylist

// Denylist records revoked token ids in Redis until the token would have
// expired on its own.
type Denylist struct {
	client *redis.Client
}

func ConnectDenylist(addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return err
	}

	Tokens = &Denylist{client: client}
	return nil
}

func (d *Denylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, "revoked:"+jti, "1", ttl).Err()
}

func (d *Denylist) Revoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, "revoked:"+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
