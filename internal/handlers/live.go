package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/scalewatch/weight-monitor-backend/internal/database"
	"github.com/scalewatch/weight-monitor-backend/internal/middleware"
	"github.com/scalewatch/weight-monitor-backend/internal/models"
	"github.com/scalewatch/weight-monitor-backend/internal/services"
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

const (
	livePongWait   = 90 * time.Second
	livePingPeriod = 30 * time.Second
)

// LiveReadings handles GET /ws/readings/{deviceId}: a WebSocket stream of
// readings as the ingestion pipeline persists them. Authentication uses the
// regular bearer token, with a `token` query parameter fallback for browser
// WebSocket clients.
func LiveReadings(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "No authentication token, access denied")
		return
	}

	authCtx, cancel := dbCtx()
	user, err := middleware.AuthenticateToken(authCtx, token, cfg.JWTSecret)
	if err != nil {
		cancel()
		writeError(w, http.StatusUnauthorized, "Token is not valid")
		return
	}

	deviceID := chi.URLParam(r, "deviceId")

	var device models.Device
	err = database.DB.Collection("devices").FindOne(authCtx, bson.M{"deviceId": deviceID}).Decode(&device)
	cancel()
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	if !canAccess(user, &device) {
		writeError(w, http.StatusForbidden, "Not authorized to access this device data")
		return
	}

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := services.SubscribeReadings(ctx, device.DeviceID)
	defer sub.Close()

	// Reader goroutine: the client sends nothing meaningful, but reads are
	// needed to process pongs and to notice disconnects.
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		return nil
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}
