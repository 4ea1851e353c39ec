package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestTimestampFilterInclusiveRange(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/readings/x?startDate=2026-08-01&endDate=2026-08-31", nil)
	filter := bson.M{"deviceId": "x"}

	require.NoError(t, timestampFilter(r, filter))

	rangeFilter, ok := filter["timestamp"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), rangeFilter["$gte"])
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), rangeFilter["$lte"])

	// Bounds are inclusive, not exclusive
	assert.NotContains(t, rangeFilter, "$gt")
	assert.NotContains(t, rangeFilter, "$lt")
}

func TestTimestampFilterPartialAndAbsent(t *testing.T) {
	t.Run("start only", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/readings/x?startDate=2026-08-01", nil)
		filter := bson.M{}
		require.NoError(t, timestampFilter(r, filter))

		rangeFilter := filter["timestamp"].(bson.M)
		assert.Contains(t, rangeFilter, "$gte")
		assert.NotContains(t, rangeFilter, "$lte")
	})

	t.Run("no range leaves filter untouched", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/readings/x", nil)
		filter := bson.M{"deviceId": "x"}
		require.NoError(t, timestampFilter(r, filter))
		assert.NotContains(t, filter, "timestamp")
	})

	t.Run("rfc3339 accepted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/readings/x?endDate=2026-08-15T10:30:00Z", nil)
		filter := bson.M{}
		require.NoError(t, timestampFilter(r, filter))
		assert.Equal(t, time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC),
			filter["timestamp"].(bson.M)["$lte"])
	})

	t.Run("garbage rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/readings/x?startDate=yesterday", nil)
		assert.Error(t, timestampFilter(r, bson.M{}))
	})
}

func TestDailyAveragesPipeline(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	pipeline := dailyAveragesPipeline("dev-1", start, end)
	require.Len(t, pipeline, 4)

	match := pipeline[0][0].Value.(bson.M)
	assert.Equal(t, "dev-1", match["deviceId"])
	window := match["timestamp"].(bson.M)
	assert.Equal(t, start, window["$gte"])
	assert.Equal(t, end, window["$lte"])

	// Per-scale averages and the total are rounded to two decimals
	project := pipeline[3][0].Value.(bson.M)
	for _, key := range []string{"avgScale1", "avgScale2", "avgScale3", "avgScale4"} {
		round, ok := project[key].(bson.M)
		require.True(t, ok, key)
		args := round["$round"].(bson.A)
		require.Len(t, args, 2)
		assert.Equal(t, 2, args[1])
	}
	totalArgs := project["totalAvg"].(bson.M)["$round"].(bson.A)
	assert.Equal(t, 2, totalArgs[1])

	// Chronological output, grouped by calendar day
	sort := pipeline[2][0].Value.(bson.D)
	assert.Equal(t, bson.D{
		{Key: "_id.year", Value: 1},
		{Key: "_id.month", Value: 1},
		{Key: "_id.day", Value: 1},
	}, sort)
}
