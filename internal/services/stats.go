package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/scalewatch/weight-monitor-backend/internal/database"
)

const (
	statsCacheKey = "cache:admin:stats"
	// StatsCacheTTL keeps the dashboard counters fresh enough while saving
	// the six count queries on every poll.
	StatsCacheTTL = 60 * time.Second
)

// AdminStats are the cross-user dashboard counters.
type AdminStats struct {
	TotalUsers    int64     `json:"totalUsers"`
	TotalDevices  int64     `json:"totalDevices"`
	ActiveDevices int64     `json:"activeDevices"`
	TotalReadings int64     `json:"totalReadings"`
	RecentDevices int64     `json:"recentDevices"`
	RecentUsers   int64     `json:"recentUsers"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// GetCachedStats returns the cached counters; a miss is not an error.
func GetCachedStats(ctx context.Context) (*AdminStats, bool) {
	val, err := database.RedisClient.Get(ctx, statsCacheKey).Result()
	if err != nil {
		return nil, false
	}
	var stats AdminStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

// CacheStats stores the counters with the stats TTL. Best effort: callers
// ignore the error beyond logging.
func CacheStats(ctx context.Context, stats *AdminStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return database.RedisClient.Set(ctx, statsCacheKey, data, StatsCacheTTL).Err()
}
