package cpr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGlobalDecodeKnownPair(t *testing.T) {
	even := Frame{Lat: 93000, Lon: 51372}
	odd := Frame{Lat: 74158, Lon: 50194}

	lat, lon, ok := GlobalDecode(even, odd, false)
	require.True(t, ok)
	require.InDelta(t, 52.2572, lat, 1e-3)
	require.InDelta(t, 3.91937, lon, 1e-3)
}

func TestGlobalDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lat := rapid.Float64Range(-89, 89).Draw(t, "lat")
		lon := rapid.Float64Range(-179, 179).Draw(t, "lon")

		even := Encode(lat, lon, false)
		odd := Encode(lat, lon, true)

		gotLat, gotLon, ok := GlobalDecode(even, odd, true)
		if !ok {
			// Straddling a latitude zone boundary with identical lat/lon in
			// both frames is a legitimate (if rare) rejection.
			return
		}

		require.InDelta(t, lat, gotLat, 360.0/(60*131072)*2)
		cosLat := math.Cos(lat * math.Pi / 180)
		if cosLat > 0.05 {
			require.InDelta(t, lon, gotLon, 360.0/(60*131072)*2/cosLat)
		}
	})
}

func TestGlobalDecodeRejectsZoneMismatch(t *testing.T) {
	// Encoded from 10.46 and 10.48 degrees: either side of the NL 59/58
	// boundary at about 10.47 degrees.
	even := Frame{Lat: 97430, Lon: 0}
	odd := Frame{Lat: 94051, Lon: 0}

	_, _, ok := GlobalDecode(even, odd, true)
	require.False(t, ok)
}

func TestLocalDecodeNearReference(t *testing.T) {
	const refLat, refLon = 52.0, 4.0
	f := Encode(52.05, 4.05, false)

	lat, lon := LocalDecode(f, false, refLat, refLon)
	require.InDelta(t, 52.05, lat, 1e-3)
	require.InDelta(t, 4.05, lon, 1e-3)
}
