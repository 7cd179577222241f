package netout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regentag/go1090/internal/modes"
	"github.com/regentag/go1090/internal/tracker"
)

func TestBuildNATSPayloadMarshalsExpectedFields(t *testing.T) {
	seen := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	u := update{
		msg: &modes.Message{ICAO: 0xA1B2C3, CRCOK: true},
		ac: &tracker.Aircraft{
			AddrType: modes.AddrADSB,
			Callsign: "UAL123",
			Squawk:   0o1200,
			Altitude: 37000,
			Lat:      40.0, Lon: -73.0,
			HavePos:  true,
			SeenLast: seen,
		},
	}

	payload := buildNATSPayload(u)
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.EqualValues(t, 0xA1B2C3, decoded["icao"])
	require.Equal(t, "UAL123", decoded["callsign"])
	require.Equal(t, true, decoded["have_pos"])
	require.Equal(t, true, decoded["crc_ok"])
	require.EqualValues(t, seen.Unix(), decoded["seen_last_unix"])
}

func TestBuildNATSPayloadOmitsEmptyOptionalFields(t *testing.T) {
	u := update{
		msg: &modes.Message{ICAO: 1},
		ac:  &tracker.Aircraft{},
	}
	data, err := json.Marshal(buildNATSPayload(u))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	_, hasCallsign := decoded["callsign"]
	require.False(t, hasCallsign)
}
