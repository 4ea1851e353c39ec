package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scalewatch/weight-monitor-backend/internal/config"
)

// DeviceBroker is the slice of the MQTT connection the REST layer uses:
// device registration subscribes the ingestion listener to the new device
// topic, updates push limits to the config topic, deletion unsubscribes.
type DeviceBroker interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Publish(topic string, qos byte, payload []byte) error
}

var (
	cfg    *config.Config
	broker DeviceBroker
)

// Init wires the handlers' shared dependencies. Must be called before the
// router starts serving.
func Init(c *config.Config, b DeviceBroker) {
	cfg = c
	broker = b
}

func dbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// serverError hides the underlying error in production mode, matching the
// API's generic 500 contract.
func serverError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("request failed")
	if cfg != nil && !cfg.IsProduction() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "Server error",
			"error":   err.Error(),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "Server error")
}
