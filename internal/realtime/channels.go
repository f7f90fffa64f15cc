// Package realtime serves the support chat over websockets. Connections
// meet in groups carried by Redis pub/sub so any number of API processes
// can share a room.
package realtime

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Channels is the group layer. A group maps to the Redis channel
// <prefix>:group:<name>.
type Channels struct {
	client *redis.Client
	prefix string
}

func NewChannels(client *redis.Client, prefix string) *Channels {
	if prefix == "" {
		prefix = "edushop"
	}
	return &Channels{client: client, prefix: prefix}
}

func (c *Channels) channel(group string) string {
	return c.prefix + ":group:" + group
}

// GroupName returns the group of a chat room.
func GroupName(roomID int64) string {
	return fmt.Sprintf("chat_%d", roomID)
}

// Publish sends payload to every subscriber of group.
func (c *Channels) Publish(ctx context.Context, group string, payload []byte) error {
	if err := c.client.Publish(ctx, c.channel(group), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", group, err)
	}
	return nil
}

// Subscribe joins group and waits for Redis to confirm the subscription,
// so nothing published after it returns is missed.
func (c *Channels) Subscribe(ctx context.Context, group string) (*redis.PubSub, error) {
	sub := c.client.Subscribe(ctx, c.channel(group))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", group, err)
	}
	return sub, nil
}
