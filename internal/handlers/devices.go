package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scalewatch/weight-monitor-backend/internal/database"
	"github.com/scalewatch/weight-monitor-backend/internal/middleware"
	"github.com/scalewatch/weight-monitor-backend/internal/models"
	"github.com/scalewatch/weight-monitor-backend/internal/mqtt"
	"github.com/scalewatch/weight-monitor-backend/pkg/utils"
)

type registerDeviceRequest struct {
	Name           string `json:"name"`
	NumberOfScales int    `json:"numberOfScales"`
	Location       string `json:"location"`
	Notes          string `json:"notes"`
}

// updateDeviceRequest distinguishes absent limit fields from explicit
// nulls: a null clears the limit, absence leaves it untouched.
type updateDeviceRequest struct {
	Name        *string         `json:"name"`
	Scale1Limit json.RawMessage `json:"scale1Limit"`
	Scale2Limit json.RawMessage `json:"scale2Limit"`
	Scale3Limit json.RawMessage `json:"scale3Limit"`
	Scale4Limit json.RawMessage `json:"scale4Limit"`
	Location    *string         `json:"location"`
	Notes       *string         `json:"notes"`
	Status      *string         `json:"status"`
}

type connectDeviceRequest struct {
	DeviceID      string `json:"deviceId"`
	OwnerPassword string `json:"ownerPassword"`
}

type deviceConfig struct {
	Scale1Limit *float64 `json:"scale1Limit"`
	Scale2Limit *float64 `json:"scale2Limit"`
	Scale3Limit *float64 `json:"scale3Limit"`
	Scale4Limit *float64 `json:"scale4Limit"`
	Timestamp   int64    `json:"timestamp"`
}

func deviceJSON(d *models.Device) map[string]interface{} {
	return map[string]interface{}{
		"id":             d.ID.Hex(),
		"deviceId":       d.DeviceID,
		"name":           d.Name,
		"userId":         d.UserID.Hex(),
		"numberOfScales": d.NumberOfScales,
		"scale1Limit":    d.Scale1Limit,
		"scale2Limit":    d.Scale2Limit,
		"scale3Limit":    d.Scale3Limit,
		"scale4Limit":    d.Scale4Limit,
		"createdAt":      d.CreatedAt,
		"lastActive":     d.LastActive,
		"status":         d.Status,
		"location":       d.Location,
		"notes":          d.Notes,
	}
}

func readingJSON(rd *models.Reading) map[string]interface{} {
	return map[string]interface{}{
		"id":          rd.ID.Hex(),
		"deviceId":    rd.DeviceID,
		"scale1":      rd.Scale1,
		"scale2":      rd.Scale2,
		"scale3":      rd.Scale3,
		"scale4":      rd.Scale4,
		"timestamp":   rd.Timestamp,
		"totalWeight": rd.TotalWeight(),
	}
}

// canAccess is the owner-or-admin check every device and reading
// operation applies.
func canAccess(user *models.User, device *models.Device) bool {
	return device.UserID == user.ID || user.IsAdmin()
}

// RegisterDevice handles POST /api/devices.
func RegisterDevice(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Device name is required")
		return
	}
	if req.NumberOfScales == 0 {
		req.NumberOfScales = models.MaxScales
	}
	if req.NumberOfScales < 1 || req.NumberOfScales > models.MaxScales {
		writeError(w, http.StatusBadRequest, "Number of scales must be between 1 and 4")
		return
	}

	now := time.Now()
	device := models.Device{
		ID:             primitive.NewObjectID(),
		DeviceID:       models.GenerateDeviceID(user.ID, req.NumberOfScales, now),
		Name:           req.Name,
		UserID:         user.ID,
		NumberOfScales: req.NumberOfScales,
		Status:         models.StatusActive,
		Location:       req.Location,
		Notes:          req.Notes,
		CreatedAt:      now,
		LastActive:     now,
	}

	ctx, cancel := dbCtx()
	defer cancel()

	if _, err := database.DB.Collection("devices").InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			writeError(w, http.StatusConflict, "A device with this id is already registered")
			return
		}
		serverError(w, err)
		return
	}

	// Subscribe the ingestion listener to the new device topic. A failure
	// here is not fatal: the shared readings topic still covers the device.
	deviceTopic := mqtt.DeviceTopic(cfg.MQTTNamespace, device.DeviceID)
	if err := broker.Subscribe(deviceTopic); err != nil {
		log.Error().Err(err).Str("topic", deviceTopic).Msg("device topic subscribe failed")
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Device registered successfully",
		"device":  deviceJSON(&device),
	})
}

// GetUserDevices handles GET /api/devices.
func GetUserDevices(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	ctx, cancel := dbCtx()
	defer cancel()

	cursor, err := database.DB.Collection("devices").Find(ctx, bson.M{"userId": user.ID})
	if err != nil {
		serverError(w, err)
		return
	}
	defer cursor.Close(ctx)

	var devices []models.Device
	if err := cursor.All(ctx, &devices); err != nil {
		serverError(w, err)
		return
	}

	deviceMaps := make([]map[string]interface{}, 0, len(devices))
	for i := range devices {
		deviceMaps = append(deviceMaps, deviceJSON(&devices[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(deviceMaps),
		"devices": deviceMaps,
	})
}

// GetDeviceByID handles GET /api/devices/{id} and includes the most
// recent reading when the device has any.
func GetDeviceByID(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	deviceID := chi.URLParam(r, "id")

	ctx, cancel := dbCtx()
	defer cancel()

	var device models.Device
	err := database.DB.Collection("devices").FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	if !canAccess(user, &device) {
		writeError(w, http.StatusForbidden, "Not authorized to access this device")
		return
	}

	deviceMap := deviceJSON(&device)
	deviceMap["deviceAge"] = device.AgeDays(time.Now())

	var latest models.Reading
	err = database.DB.Collection("readings").
		FindOne(ctx, bson.M{"deviceId": deviceID}, options.FindOne().SetSort(bson.M{"timestamp": -1})).
		Decode(&latest)

	resp := map[string]interface{}{"device": deviceMap, "latestReading": nil}
	if err == nil {
		resp["latestReading"] = map[string]interface{}{
			"scale1":      latest.Scale1,
			"scale2":      latest.Scale2,
			"scale3":      latest.Scale3,
			"scale4":      latest.Scale4,
			"timestamp":   latest.Timestamp,
			"totalWeight": latest.TotalWeight(),
		}
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateDevice handles PUT /api/devices/{id}. On success the current
// limits are republished to the device config topic; the write and the
// publish are not atomic.
func UpdateDevice(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	deviceID := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()

	var device models.Device
	err := database.DB.Collection("devices").FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	if !canAccess(user, &device) {
		writeError(w, http.StatusForbidden, "Not authorized to update this device")
		return
	}

	update := bson.M{}
	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "Device name must not be empty")
			return
		}
		update["name"] = *req.Name
	}
	limitFields := []struct {
		key string
		raw json.RawMessage
	}{
		{"scale1Limit", req.Scale1Limit},
		{"scale2Limit", req.Scale2Limit},
		{"scale3Limit", req.Scale3Limit},
		{"scale4Limit", req.Scale4Limit},
	}
	for _, f := range limitFields {
		if f.raw == nil {
			continue
		}
		if string(f.raw) == "null" {
			update[f.key] = nil
			continue
		}
		var limit float64
		if err := json.Unmarshal(f.raw, &limit); err != nil {
			writeError(w, http.StatusBadRequest, "Scale limits must be numbers")
			return
		}
		update[f.key] = limit
	}
	if req.Location != nil {
		update["location"] = *req.Location
	}
	if req.Notes != nil {
		update["notes"] = *req.Notes
	}
	if req.Status != nil {
		if !models.ValidStatus(*req.Status) {
			writeError(w, http.StatusBadRequest, "Status must be active, inactive, or maintenance")
			return
		}
		update["status"] = *req.Status
	}

	if len(update) == 0 {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	err = database.DB.Collection("devices").FindOneAndUpdate(ctx,
		bson.M{"deviceId": deviceID},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&device)
	if err != nil {
		serverError(w, err)
		return
	}

	publishDeviceConfig(&device)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Device updated successfully",
		"device":  deviceJSON(&device),
	})
}

// publishDeviceConfig pushes the device's current limits to its config
// topic at QoS 1 so a connected sensor picks them up.
func publishDeviceConfig(device *models.Device) {
	msg, err := json.Marshal(deviceConfig{
		Scale1Limit: device.Scale1Limit,
		Scale2Limit: device.Scale2Limit,
		Scale3Limit: device.Scale3Limit,
		Scale4Limit: device.Scale4Limit,
		Timestamp:   time.Now().UnixMilli(),
	})
	if err != nil {
		log.Error().Err(err).Msg("device config encode failed")
		return
	}
	topic := mqtt.ConfigTopic(cfg.MQTTNamespace, device.DeviceID)
	if err := broker.Publish(topic, 1, msg); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("device config publish failed")
	}
}

// ConnectToDevice handles POST /api/devices/connect. Access to another
// user's device is granted by presenting that owner's account password,
// re-verified against the stored hash.
func ConnectToDevice(w http.ResponseWriter, r *http.Request) {
	var req connectDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DeviceID == "" || req.OwnerPassword == "" {
		writeError(w, http.StatusBadRequest, "Device ID and owner password are required")
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()

	var device models.Device
	err := database.DB.Collection("devices").FindOne(ctx, bson.M{"deviceId": req.DeviceID}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	var owner models.User
	err = database.DB.Collection("users").FindOne(ctx, bson.M{"_id": device.UserID}).Decode(&owner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Device owner not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	valid, err := utils.VerifyPassword(req.OwnerPassword, owner.Password)
	if err != nil || !valid {
		writeError(w, http.StatusUnauthorized, "Invalid device owner password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Successfully connected to device",
		"device": map[string]interface{}{
			"id":             device.ID.Hex(),
			"deviceId":       device.DeviceID,
			"name":           device.Name,
			"numberOfScales": device.NumberOfScales,
			"createdAt":      device.CreatedAt,
			"owner": map[string]interface{}{
				"id":    owner.ID.Hex(),
				"name":  owner.Name,
				"email": owner.Email,
			},
		},
	})
}

// DeleteDevice handles DELETE /api/devices/{id}. Readings are retained;
// bulk deletion stays an explicit, separate operation.
func DeleteDevice(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	deviceID := chi.URLParam(r, "id")

	ctx, cancel := dbCtx()
	defer cancel()

	var device models.Device
	err := database.DB.Collection("devices").FindOne(ctx, bson.M{"deviceId": deviceID}).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	if !canAccess(user, &device) {
		writeError(w, http.StatusForbidden, "Not authorized to delete this device")
		return
	}

	if _, err := database.DB.Collection("devices").DeleteOne(ctx, bson.M{"deviceId": deviceID}); err != nil {
		serverError(w, err)
		return
	}

	deviceTopic := mqtt.DeviceTopic(cfg.MQTTNamespace, deviceID)
	if err := broker.Unsubscribe(deviceTopic); err != nil {
		log.Error().Err(err).Str("topic", deviceTopic).Msg("device topic unsubscribe failed")
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Device deleted successfully"})
}
