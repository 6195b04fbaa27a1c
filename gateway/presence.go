package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence is the Redis-backed cross-node presence table. Nil receiver is a
// no-op everywhere, so single-node deployments simply run without Redis.
type Presence struct {
	rdb    *redis.Client
	nodeID string
}

type PresenceConf struct {
	Addr     string
	Password string
	DB       int
}

// presence key: live:presence:<user>
// value: node id; TTL bounds the online validity window
func presenceKey(user string) string { return "live:presence:" + user }

func NewPresence(c PresenceConf, nodeID string) (*Presence, error) {
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}
	return &Presence{rdb: rdb, nodeID: nodeID}, nil
}

// Online marks the user online on this node and arms the TTL.
func (p *Presence) Online(ctx context.Context, user string, ttl time.Duration) error {
	if p == nil {
		return nil
	}
	return p.rdb.Set(ctx, presenceKey(user), p.nodeID, ttl).Err()
}

// Renew extends the online validity window.
func (p *Presence) Renew(ctx context.Context, user string, ttl time.Duration) error {
	if p == nil {
		return nil
	}
	return p.rdb.Expire(ctx, presenceKey(user), ttl).Err()
}

// Offline deletes the presence key.
func (p *Presence) Offline(ctx context.Context, user string) error {
	if p == nil {
		return nil
	}
	return p.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports whether the user is online anywhere, and on which node.
func (p *Presence) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	if p == nil {
		return "", false, nil
	}
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (p *Presence) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
