package producer

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster repassa snapshots de cotas pelo Pub/Sub do Redis,
// de onde o hub WebSocket os distribui aos clientes conectados.
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}
