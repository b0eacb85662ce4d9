// internal/realtime/redis.go
package realtime

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NotificationChannel is the pub/sub channel for one user's pushes.
func NotificationChannel(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

// NewRedis creates a Redis client for the pub/sub fabric.
func NewRedis(addr, password string) *redis.Client {
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	log.Printf("Redis client created (addr: %s)\n", addr)
	return rdb
}

// BridgeNotifications subscribes to notifications:* and forwards every
// payload to the target user's live connections. Publishers put the final
// websocket event shape on the channel, so the bridge forwards it verbatim;
// it is the only delivery path when Redis is up, local sockets included.
func BridgeNotifications(ctx context.Context, rdb *redis.Client, hub *Hub) {
	sub := rdb.PSubscribe(ctx, "notifications:*")

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				raw := strings.TrimPrefix(msg.Channel, "notifications:")
				userID, err := uuid.Parse(raw)
				if err != nil {
					log.Printf("Redis bridge: bad channel %s: %v", msg.Channel, err)
					continue
				}
				hub.sendRaw(userID, []byte(msg.Payload))
			}
		}
	}()
}
