package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
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
	"github.com/scalewatch/weight-monitor-backend/internal/services"
)

type adminUserRow struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Role        string             `bson:"role"`
	CreatedAt   time.Time          `bson:"createdAt"`
	LastLogin   time.Time          `bson:"lastLogin"`
	DeviceCount int                `bson:"deviceCount"`
}

type adminDeviceRow struct {
	Device models.Device `bson:",inline"`
	Owner  []models.User `bson:"owner"`
}

type activityItem struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	User      string                 `json:"user"`
	Details   map[string]interface{} `json:"details"`
}

// GetAdminStats handles GET /api/admin/stats. The counters are cached in
// Redis for a minute; the dashboard polls aggressively.
func GetAdminStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dbCtx()
	defer cancel()

	if stats, ok := services.GetCachedStats(ctx); ok {
		writeJSON(w, http.StatusOK, stats)
		return
	}

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)

	stats := &services.AdminStats{LastUpdated: time.Now()}
	counts := []struct {
		dest       *int64
		collection string
		filter     bson.M
	}{
		{&stats.TotalUsers, "users", bson.M{}},
		{&stats.TotalDevices, "devices", bson.M{}},
		{&stats.ActiveDevices, "devices", bson.M{"status": models.StatusActive}},
		{&stats.TotalReadings, "readings", bson.M{}},
		{&stats.RecentDevices, "devices", bson.M{"createdAt": bson.M{"$gte": thirtyDaysAgo}}},
		{&stats.RecentUsers, "users", bson.M{"createdAt": bson.M{"$gte": thirtyDaysAgo}}},
	}
	for _, c := range counts {
		n, err := database.DB.Collection(c.collection).CountDocuments(ctx, c.filter)
		if err != nil {
			serverError(w, err)
			return
		}
		*c.dest = n
	}

	if err := services.CacheStats(ctx, stats); err != nil {
		log.Warn().Err(err).Msg("stats cache write failed")
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetAllUsers handles GET /api/admin/users: paginated, searchable by name
// or email, with a per-user device count joined in.
func GetAllUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dbCtx()
	defer cancel()

	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	skip := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v >= 0 {
		skip = v
	}

	match := bson.M{}
	if search := r.URL.Query().Get("search"); search != "" {
		match = bson.M{"$or": bson.A{
			bson.M{"name": bson.M{"$regex": search, "$options": "i"}},
			bson.M{"email": bson.M{"$regex": search, "$options": "i"}},
		}}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "devices",
			"localField":   "_id",
			"foreignField": "userId",
			"as":           "devices",
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"name":        1,
			"email":       1,
			"role":        1,
			"createdAt":   1,
			"lastLogin":   1,
			"deviceCount": bson.M{"$size": "$devices"},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"createdAt": -1}}},
		bson.D{{Key: "$skip", Value: skip}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := database.DB.Collection("users").Aggregate(ctx, pipeline)
	if err != nil {
		serverError(w, err)
		return
	}
	defer cursor.Close(ctx)

	var rows []adminUserRow
	if err := cursor.All(ctx, &rows); err != nil {
		serverError(w, err)
		return
	}

	total, err := database.DB.Collection("users").CountDocuments(ctx, match)
	if err != nil {
		serverError(w, err)
		return
	}

	userMaps := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		userMaps = append(userMaps, map[string]interface{}{
			"id":        row.ID.Hex(),
			"name":      row.Name,
			"email":     row.Email,
			"role":      row.Role,
			"createdAt": row.CreatedAt,
			"lastLogin": row.LastLogin,
			"devices":   row.DeviceCount,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":      total,
		"count":      len(userMaps),
		"page":       skip/limit + 1,
		"totalPages": (total + int64(limit) - 1) / int64(limit),
		"users":      userMaps,
	})
}

// GetAllDevices handles GET /api/admin/devices with the owner identity
// joined in. A device whose owner was removed reports a null owner.
func GetAllDevices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dbCtx()
	defer cancel()

	rows, err := devicesWithOwners(ctx, 0)
	if err != nil {
		serverError(w, err)
		return
	}

	deviceMaps := make([]map[string]interface{}, 0, len(rows))
	for i := range rows {
		d := &rows[i].Device
		m := map[string]interface{}{
			"id":             d.ID.Hex(),
			"deviceId":       d.DeviceID,
			"name":           d.Name,
			"numberOfScales": d.NumberOfScales,
			"createdAt":      d.CreatedAt,
			"lastActive":     d.LastActive,
			"status":         d.Status,
			"location":       d.Location,
			"owner":          nil,
		}
		if len(rows[i].Owner) > 0 {
			owner := rows[i].Owner[0]
			m["owner"] = map[string]interface{}{
				"id":    owner.ID.Hex(),
				"name":  owner.Name,
				"email": owner.Email,
			}
		}
		deviceMaps = append(deviceMaps, m)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(deviceMaps),
		"devices": deviceMaps,
	})
}

func devicesWithOwners(ctx context.Context, limit int) ([]adminDeviceRow, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sort", Value: bson.M{"createdAt": -1}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.M{
		"from":         "users",
		"localField":   "userId",
		"foreignField": "_id",
		"as":           "owner",
	}}})

	cursor, err := database.DB.Collection("devices").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []adminDeviceRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateUserRole handles PUT /api/admin/users/{id}/role.
func UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		writeError(w, http.StatusBadRequest, `Invalid role. Must be "user" or "admin"`)
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()

	var user models.User
	err = database.DB.Collection("users").FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": req.Role}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User role updated successfully",
		"user": map[string]interface{}{
			"id":    user.ID.Hex(),
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// DeleteUser handles DELETE /api/admin/users/{id}: removes the user and
// cascades to their devices and readings.
func DeleteUser(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFrom(r.Context())

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if id == admin.ID {
		writeError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()

	count, err := database.DB.Collection("users").CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		serverError(w, err)
		return
	}
	if count == 0 {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if _, err := database.DB.Collection("devices").DeleteMany(ctx, bson.M{"userId": id}); err != nil {
		serverError(w, err)
		return
	}
	if _, err := database.DB.Collection("readings").DeleteMany(ctx, bson.M{"userId": id}); err != nil {
		serverError(w, err)
		return
	}
	if _, err := database.DB.Collection("users").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User and associated data deleted successfully"})
}

// GetSystemActivity handles GET /api/admin/activity: the most recent
// device and user registrations merged into one feed, newest first.
func GetSystemActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dbCtx()
	defer cancel()

	limit := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	deviceRows, err := devicesWithOwners(ctx, limit/2)
	if err != nil {
		serverError(w, err)
		return
	}

	userCursor, err := database.DB.Collection("users").Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(int64(limit/2)))
	if err != nil {
		serverError(w, err)
		return
	}
	defer userCursor.Close(ctx)

	var users []models.User
	if err := userCursor.All(ctx, &users); err != nil {
		serverError(w, err)
		return
	}

	activity := make([]activityItem, 0, len(deviceRows)+len(users))
	for i := range deviceRows {
		d := &deviceRows[i].Device
		ownerName := "Unknown"
		if len(deviceRows[i].Owner) > 0 {
			ownerName = deviceRows[i].Owner[0].Name
		}
		activity = append(activity, activityItem{
			Type:      "device_registered",
			Message:   `Device "` + d.Name + `" registered by ` + ownerName,
			Timestamp: d.CreatedAt,
			User:      ownerName,
			Details: map[string]interface{}{
				"deviceId":   d.DeviceID,
				"deviceName": d.Name,
			},
		})
	}
	for i := range users {
		activity = append(activity, activityItem{
			Type:      "user_registered",
			Message:   `New user "` + users[i].Name + `" registered`,
			Timestamp: users[i].CreatedAt,
			User:      users[i].Name,
			Details:   map[string]interface{}{"email": users[i].Email},
		})
	}

	sort.Slice(activity, func(i, j int) bool {
		return activity[i].Timestamp.After(activity[j].Timestamp)
	})
	if len(activity) > limit {
		activity = activity[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(activity),
		"activity": activity,
	})
}
