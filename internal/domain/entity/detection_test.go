package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectionCenter(t *testing.T) {
	d := Detection{CenterX: 14, CenterY: 23, Width: 8, Height: 6}
	require.Equal(t, Marker{X: 14, Y: 23}, d.Center())
	require.NoError(t, d.Validate())
}

func TestDetectionValidate_NonFinite(t *testing.T) {
	d := Detection{CenterX: math.NaN(), CenterY: 1}
	require.ErrorIs(t, d.Validate(), ErrInvalidDetection)

	d = Detection{CenterX: 1, CenterY: math.Inf(1)}
	require.ErrorIs(t, d.Validate(), ErrInvalidDetection)
}
