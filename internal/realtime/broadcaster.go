// Package realtime pushes slot availability changes to connected clients
// through Redis pub/sub. Each classroom has its own channel so frontends can
// subscribe only to the rooms they are displaying.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotChange describes a change in a classroom's availability timeline.
type SlotChange struct {
	ClassroomID   string    `json:"classroom_id"`
	ReservationID string    `json:"reservation_id"`
	Change        string    `json:"change"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// Change values carried by SlotChange.
const (
	ChangeReserved = "reserved"
	ChangeReleased = "released"
	ChangeAssigned = "assigned"
)

// Broadcaster fans a slot change out to subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, change SlotChange) error
}

// RedisBroadcaster publishes slot changes on per-classroom Redis channels.
type RedisBroadcaster struct {
	client        *redis.Client
	channelPrefix string
}

// NewRedisBroadcaster wraps a Redis client. The prefix defaults to
// "classroom" when empty, producing channels like "classroom:<id>".
func NewRedisBroadcaster(client *redis.Client, channelPrefix string) *RedisBroadcaster {
	if channelPrefix == "" {
		channelPrefix = "classroom"
	}
	return &RedisBroadcaster{client: client, channelPrefix: channelPrefix}
}

// Broadcast publishes the change to the classroom's channel.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, change SlotChange) error {
	const op = "realtime.RedisBroadcaster.Broadcast"

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	channel := b.channelPrefix + ":" + change.ClassroomID
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// NopBroadcaster drops every change. It stands in when Redis is not
// configured.
type NopBroadcaster struct{}

// Broadcast implements Broadcaster.
func (NopBroadcaster) Broadcast(context.Context, SlotChange) error { return nil }
