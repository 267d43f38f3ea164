// Package feed relays room snapshots from the host's mutations to every
// connected viewer. Snapshots travel through a Redis pub/sub channel so that
// fan-out keeps working when viewers are connected to a different server
// instance than the host.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/nurbekov/courtside/matchmaking"
	"github.com/nurbekov/courtside/models"
)

const (
	channelPrefix        = "room_updates:"
	MessageTypeRoomState = "ROOM_STATE"
)

// RoomKey names the hub room for a party. WebSocket clients and published
// envelopes use the same key.
func RoomKey(partyID int) string {
	return "party_" + strconv.Itoa(partyID)
}

func channelFor(partyID int) string {
	return channelPrefix + strconv.Itoa(partyID)
}

// Publisher pushes a freshly persisted room snapshot into the change feed.
// Delivery is at-most-once; a viewer that misses an event stays stale until
// the next one.
type Publisher interface {
	PublishRoom(ctx context.Context, room *models.Room) error
}

// RedisFeed is both ends of the feed: PublishRoom on the mutating side, Run
// on the relay side subscribing to all room channels and fanning messages
// into the local hub.
type RedisFeed struct {
	rdb    *redis.Client
	hub    *matchmaking.Hub
	logger *slog.Logger
}

func NewRedisFeed(rdb *redis.Client, hub *matchmaking.Hub, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, hub: hub, logger: logger}
}

func (f *RedisFeed) PublishRoom(ctx context.Context, room *models.Room) error {
	envelope := matchmaking.RoomMessage{
		Type:    MessageTypeRoomState,
		Payload: room,
		RoomID:  RoomKey(room.PartyID),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal room envelope: %w", err)
	}
	if err := f.rdb.Publish(ctx, channelFor(room.PartyID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish room update for party %d: %w", room.PartyID, err)
	}
	return nil
}

// Run subscribes to every room channel and relays each message, already
// encoded, to the hub room named in the channel. Blocks until ctx is done.
func (f *RedisFeed) Run(ctx context.Context) error {
	pubsub := f.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	f.logger.Info("change feed relay started")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			partyIDStr := strings.TrimPrefix(msg.Channel, channelPrefix)
			partyID, err := strconv.Atoi(partyIDStr)
			if err != nil {
				f.logger.Warn("ignoring malformed feed channel", slog.String("channel", msg.Channel))
				continue
			}
			f.hub.BroadcastRawToRoom(RoomKey(partyID), []byte(msg.Payload))
		}
	}
}
