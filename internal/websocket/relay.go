package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultRelayChannel = "fleet-safety:broadcast"

// RedisRelay shares broadcast frames between server instances over Redis
// pub/sub. Frames stamped with this instance's id are not delivered twice.
type RedisRelay struct {
	client  *goredis.Client
	channel string
	manager *Manager
	cancel  context.CancelFunc
}

func NewRedisRelay(client *goredis.Client, channel string, manager *Manager) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{client: client, channel: channel, manager: manager}
}

func (r *RedisRelay) Publish(frame []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Publish(ctx, r.channel, frame).Err()
}

// Start subscribes and returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := r.client.Subscribe(ctx, r.channel)

	confirmCtx, confirmCancel := context.WithTimeout(ctx, 5*time.Second)
	defer confirmCancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		cancel()
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.cancel = cancel
	go r.listen(ctx, pubsub)
	log.Printf("WebSocket relay subscribed to %s", r.channel)
	return nil
}

func (r *RedisRelay) listen(ctx context.Context, pubsub *goredis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) deliver(frame []byte) {
	var header struct {
		Event  string `json:"event"`
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(frame, &header); err != nil {
		log.Printf("WebSocket relay dropped malformed frame: %v", err)
		return
	}
	if header.Origin == r.manager.InstanceID() {
		return
	}
	r.manager.DeliverLocal(frame)
}

func (r *RedisRelay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}
