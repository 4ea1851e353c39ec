package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scalewatch/weight-monitor-backend/internal/database"
	"github.com/scalewatch/weight-monitor-backend/internal/middleware"
	"github.com/scalewatch/weight-monitor-backend/internal/models"
)

// dailyAverage is one calendar-day bucket from the aggregation pipeline.
type dailyAverage struct {
	Date         string  `bson:"date" json:"date"`
	AvgScale1    float64 `bson:"avgScale1" json:"avgScale1"`
	AvgScale2    float64 `bson:"avgScale2" json:"avgScale2"`
	AvgScale3    float64 `bson:"avgScale3" json:"avgScale3"`
	AvgScale4    float64 `bson:"avgScale4" json:"avgScale4"`
	TotalAvg     float64 `bson:"totalAvg" json:"totalAvg"`
	ReadingCount int     `bson:"readingCount" json:"readingCount"`
}

// loadAuthorizedDevice fetches the device and applies the owner-or-admin
// check shared by every reading operation. It writes the error response
// itself and returns false when the caller should stop.
func loadAuthorizedDevice(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Device, bool) {
	user := middleware.UserFrom(r.Context())
	deviceID := chi.URLParam(r, "deviceId")

	var device models.Device
	err := database.DB.Collection("devices").FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Device not found")
		return nil, false
	}
	if err != nil {
		serverError(w, err)
		return nil, false
	}

	if !canAccess(user, &device) {
		writeError(w, http.StatusForbidden, "Not authorized to access this device data")
		return nil, false
	}
	return &device, true
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// timestampFilter builds the inclusive [startDate, endDate] filter from
// query parameters, when either is present.
func timestampFilter(r *http.Request, filter bson.M) error {
	rangeFilter := bson.M{}
	if s := r.URL.Query().Get("startDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("invalid startDate")
		}
		rangeFilter["$gte"] = t
	}
	if s := r.URL.Query().Get("endDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("invalid endDate")
		}
		rangeFilter["$lte"] = t
	}
	if len(rangeFilter) > 0 {
		filter["timestamp"] = rangeFilter
	}
	return nil
}

func touchLastActive(ctx context.Context, deviceID string) {
	_, err := database.DB.Collection("devices").UpdateOne(ctx,
		bson.M{"deviceId": deviceID},
		bson.M{"$set": bson.M{"lastActive": time.Now()}})
	if err != nil {
		log.Warn().Err(err).Str("deviceId", deviceID).Msg("lastActive update failed")
	}
}

// GetDeviceReadings handles GET /api/readings/{deviceId}: newest-first,
// paginated, optionally bounded by an inclusive date range.
func GetDeviceReadings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dbCtx()
	defer cancel()

	device, ok := loadAuthorizedDevice(ctx, w, r)
	if !ok {
		return
	}

	limit := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	skip := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v >= 0 {
		skip = v
	}

	filter := bson.M{"deviceId": device.DeviceID}
	if err := timestampFilter(r, filter); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	findOptions := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := database.DB.Collection("readings").Find(ctx, filter, findOptions)
	if err != nil {
		serverError(w, err)
		return
	}
	defer cursor.Close(ctx)

	var readings []models.Reading
	if err := cursor.All(ctx, &readings); err != nil {
		serverError(w, err)
		return
	}

	total, err := database.DB.Collection("readings").CountDocuments(ctx, filter)
	if err != nil {
		serverError(w, err)
		return
	}

	touchLastActive(ctx, device.DeviceID)

	readingMaps := make([]map[string]interface{}, 0, len(readings))
	for i := range readings {
		readingMaps = append(readingMaps, readingJSON(&readings[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":      total,
		"count":      len(readingMaps),
		"page":       skip/limit + 1,
		"totalPages": (total + int64(limit) - 1) / int64(limit),
		"readings":   readingMaps,
	})
}

// GetLatestReading handles GET /api/readings/{deviceId}/latest.
func GetLatestReading(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dbCtx()
	defer cancel()

	device, ok := loadAuthorizedDevice(ctx, w, r)
	if !ok {
		return
	}

	var reading models.Reading
	err := database.DB.Collection("readings").
		FindOne(ctx, bson.M{"deviceId": device.DeviceID}, options.FindOne().SetSort(bson.M{"timestamp": -1})).
		Decode(&reading)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "No readings found for this device")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	touchLastActive(ctx, device.DeviceID)

	writeJSON(w, http.StatusOK, map[string]interface{}{"reading": readingJSON(&reading)})
}

// GetDailyAverages handles GET /api/readings/{deviceId}/daily: per-scale
// means grouped by calendar day, rounded to two decimals, chronological.
// Without an explicit range the window is the trailing 30 days.
func GetDailyAverages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	device, ok := loadAuthorizedDevice(ctx, w, r)
	if !ok {
		return
	}

	end := time.Now()
	if s := r.URL.Query().Get("endDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate")
			return
		}
		end = t
	}
	start := end.AddDate(0, 0, -30)
	if s := r.URL.Query().Get("startDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate")
			return
		}
		start = t
	}

	cursor, err := database.DB.Collection("readings").Aggregate(ctx, dailyAveragesPipeline(device.DeviceID, start, end))
	if err != nil {
		serverError(w, err)
		return
	}
	defer cursor.Close(ctx)

	averages := make([]dailyAverage, 0)
	if err := cursor.All(ctx, &averages); err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deviceId":  device.DeviceID,
		"startDate": start,
		"endDate":   end,
		"count":     len(averages),
		"averages":  averages,
	})
}

// dailyAveragesPipeline buckets a device's readings by calendar day over the
// inclusive [start, end] window, with per-scale means rounded to two
// decimals.
func dailyAveragesPipeline(deviceID string, start, end time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"deviceId":  deviceID,
			"timestamp": bson.M{"$gte": start, "$lte": end},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$timestamp"},
				"month": bson.M{"$month": "$timestamp"},
				"day":   bson.M{"$dayOfMonth": "$timestamp"},
			},
			"avgScale1": bson.M{"$avg": "$scale1"},
			"avgScale2": bson.M{"$avg": "$scale2"},
			"avgScale3": bson.M{"$avg": "$scale3"},
			"avgScale4": bson.M{"$avg": "$scale4"},
			"count":     bson.M{"$sum": 1},
			"date":      bson.M{"$first": "$timestamp"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "_id.year", Value: 1},
			{Key: "_id.month", Value: 1},
			{Key: "_id.day", Value: 1},
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"_id":       0,
			"date":      bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$date"}},
			"avgScale1": bson.M{"$round": bson.A{"$avgScale1", 2}},
			"avgScale2": bson.M{"$round": bson.A{"$avgScale2", 2}},
			"avgScale3": bson.M{"$round": bson.A{"$avgScale3", 2}},
			"avgScale4": bson.M{"$round": bson.A{"$avgScale4", 2}},
			"totalAvg": bson.M{"$round": bson.A{
				bson.M{"$add": bson.A{"$avgScale1", "$avgScale2", "$avgScale3", "$avgScale4"}}, 2,
			}},
			"readingCount": "$count",
		}}},
	}
}

// DeleteDeviceReadings handles DELETE /api/readings/{deviceId} with an
// optional inclusive date range.
func DeleteDeviceReadings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dbCtx()
	defer cancel()

	device, ok := loadAuthorizedDevice(ctx, w, r)
	if !ok {
		return
	}

	filter := bson.M{"deviceId": device.DeviceID}
	if err := timestampFilter(r, filter); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := database.DB.Collection("readings").DeleteMany(ctx, filter)
	if err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%d readings deleted successfully", result.DeletedCount),
	})
}
