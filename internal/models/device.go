package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
)

// MaxScales is the number of scales a single device can carry.
const MaxScales = 4

type Device struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeviceID       string             `bson:"deviceId" json:"deviceId"`
	Name           string             `bson:"name" json:"name"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	NumberOfScales int                `bson:"numberOfScales" json:"numberOfScales"`

	// A nil limit disables alerting for that scale.
	Scale1Limit *float64 `bson:"scale1Limit" json:"scale1Limit"`
	Scale2Limit *float64 `bson:"scale2Limit" json:"scale2Limit"`
	Scale3Limit *float64 `bson:"scale3Limit" json:"scale3Limit"`
	Scale4Limit *float64 `bson:"scale4Limit" json:"scale4Limit"`

	Status     string    `bson:"status" json:"status"`
	Location   string    `bson:"location" json:"location"`
	Notes      string    `bson:"notes" json:"notes"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	LastActive time.Time `bson:"lastActive" json:"lastActive"`
}

// GenerateDeviceID builds the device identifier from the registration date,
// the scale count and the owner id. The result is stable for repeated calls
// on the same day and unique only at date+owner granularity.
func GenerateDeviceID(userID primitive.ObjectID, numberOfScales int, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s", at.Format("20060102"), numberOfScales, userID.Hex())
}

// ValidStatus reports whether s is one of the device lifecycle states.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive || s == StatusMaintenance
}

// Limits returns the per-scale limits in scale order.
func (d *Device) Limits() [MaxScales]*float64 {
	return [MaxScales]*float64{d.Scale1Limit, d.Scale2Limit, d.Scale3Limit, d.Scale4Limit}
}

// AgeDays returns the whole days elapsed since the device was registered.
func (d *Device) AgeDays(now time.Time) int {
	return int(now.Sub(d.CreatedAt).Hours() / 24)
}
