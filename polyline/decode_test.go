package polyline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ReferencePath(t *testing.T) {
	// Reference sequence from the polyline algorithm documentation.
	path := Decode("_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	require.Len(t, path, 3)
	assert.InDelta(t, 38.5, path[0].Lat, 1e-5)
	assert.InDelta(t, -120.2, path[0].Lng, 1e-5)
	assert.InDelta(t, 40.7, path[1].Lat, 1e-5)
	assert.InDelta(t, -120.95, path[1].Lng, 1e-5)
	assert.InDelta(t, 43.252, path[2].Lat, 1e-5)
	assert.InDelta(t, -126.453, path[2].Lng, 1e-5)
}

func TestDecode_Empty(t *testing.T) {
	path := Decode("")

	assert.NotNil(t, path)
	assert.Empty(t, path)
}

func TestDecode_SinglePoint(t *testing.T) {
	path := Decode("_p~iF~ps|U")

	require.Len(t, path, 1)
	assert.InDelta(t, 38.5, path[0].Lat, 1e-5)
	assert.InDelta(t, -120.2, path[0].Lng, 1e-5)
}

func TestDecode_TruncatedInput(t *testing.T) {
	// A dangling continuation byte must not panic or emit a bogus point.
	path := Decode("_p~iF~ps|U_")

	assert.Len(t, path, 1)
}
