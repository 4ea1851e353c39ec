package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/scalewatch/weight-monitor-backend/internal/database"
	"github.com/scalewatch/weight-monitor-backend/internal/models"
)

const liveChannelPrefix = "live:readings:"

// RedisLiveFeed broadcasts persisted readings over Redis pub/sub so every
// API process can fan them out to its own websocket clients.
type RedisLiveFeed struct{}

func (RedisLiveFeed) PublishReading(ctx context.Context, reading *models.Reading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, liveChannelPrefix+reading.DeviceID, data).Err()
}

// SubscribeReadings subscribes to the live channel for one device. The
// caller owns the returned subscription and must Close it.
func SubscribeReadings(ctx context.Context, deviceID string) *redis.PubSub {
	return database.RedisClient.Subscribe(ctx, liveChannelPrefix+deviceID)
}
