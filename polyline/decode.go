// Package polyline decodes Google's encoded polyline format into
// coordinate sequences.
package polyline

import "github.com/mtlrider/stm-live/geo"

// Decode converts an encoded polyline string into an ordered coordinate
// path. Each coordinate component is a zig-zag encoded signed delta packed
// into 5-bit groups; the accumulated integer is divided by 1e5 to recover
// degrees. An empty input yields an empty path.
func Decode(encoded string) []geo.Coord {
	path := []geo.Coord{}
	var lat, lng int64
	i := 0
	for i < len(encoded) {
		dLat, n, ok := decodeComponent(encoded[i:])
		if !ok {
			return path
		}
		i += n
		lat += dLat

		dLng, n, ok := decodeComponent(encoded[i:])
		if !ok {
			return path
		}
		i += n
		lng += dLng

		path = append(path, geo.Coord{
			Lat: float64(lat) / 1e5,
			Lng: float64(lng) / 1e5,
		})
	}
	return path
}

// decodeComponent reads one signed varint component from s, returning the
// delta value and the number of bytes consumed. ok is false when the string
// ends mid-component (truncated input).
func decodeComponent(s string) (int64, int, bool) {
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			// zig-zag decode
			if result&1 != 0 {
				return ^(result >> 1), i + 1, true
			}
			return result >> 1, i + 1, true
		}
	}
	return 0, len(s), false
}
