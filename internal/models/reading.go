package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reading is one immutable telemetry sample. DeviceID references the
// generated device identifier, not the database id of the device document.
type Reading struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeviceID  string             `bson:"deviceId" json:"deviceId"`
	UserID    primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	Scale1    float64            `bson:"scale1" json:"scale1"`
	Scale2    float64            `bson:"scale2" json:"scale2"`
	Scale3    float64            `bson:"scale3" json:"scale3"`
	Scale4    float64            `bson:"scale4" json:"scale4"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// TotalWeight is the derived sum of the four scale values. It is computed
// on read and never stored.
func (r *Reading) TotalWeight() float64 {
	return r.Scale1 + r.Scale2 + r.Scale3 + r.Scale4
}

// Scales returns the scale values in scale order.
func (r *Reading) Scales() [MaxScales]float64 {
	return [MaxScales]float64{r.Scale1, r.Scale2, r.Scale3, r.Scale4}
}
