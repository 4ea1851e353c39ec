package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalWeight(t *testing.T) {
	r := Reading{Scale1: 10.5, Scale2: 20.25, Scale3: 0, Scale4: 4.25}
	assert.InDelta(t, 35.0, r.TotalWeight(), 1e-9)

	empty := Reading{}
	assert.Equal(t, 0.0, empty.TotalWeight())
}

func TestScales(t *testing.T) {
	r := Reading{Scale1: 1, Scale2: 2, Scale3: 3, Scale4: 4}
	assert.Equal(t, [MaxScales]float64{1, 2, 3, 4}, r.Scales())
}
