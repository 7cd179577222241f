package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regentag/go1090/internal/cpr"
	"github.com/regentag/go1090/internal/modes"
)

func cprMsg(icao uint32, ts uint64, lat, lon int, odd bool) *modes.Message {
	m := &modes.Message{
		ICAO:         icao,
		AddrType:     modes.AddrADSB,
		TimestampMsg: ts,
		CPRLat:       lat,
		CPRLon:       lon,
		CPROdd:       odd,
	}
	m.Flags |= modes.FlagCPR
	return m
}

func TestUpdateCreatesAircraftOnFirstMessage(t *testing.T) {
	tr := New(false, 0, 0, 0)
	now := time.Unix(1000, 0)

	msg := &modes.Message{ICAO: 0xABCDEF, AddrType: modes.AddrModeSChecked, TimestampMsg: 1}
	ac := tr.Update(msg, now)

	require.NotNil(t, ac)
	require.Equal(t, uint32(0xABCDEF), ac.Addr)
	require.Equal(t, 1, tr.Len())
}

func TestUpdateNeverDowngradesAddrType(t *testing.T) {
	tr := New(false, 0, 0, 0)
	now := time.Unix(1000, 0)

	tr.Update(&modes.Message{ICAO: 0x1, AddrType: modes.AddrADSB, TimestampMsg: 1}, now)
	ac := tr.Update(&modes.Message{ICAO: 0x1, AddrType: modes.AddrModeS, TimestampMsg: 2}, now.Add(time.Second))

	require.Equal(t, modes.AddrADSB, ac.AddrType)
}

func TestUpdateDedupsExactRepeat(t *testing.T) {
	tr := New(false, 0, 0, 0)
	now := time.Unix(1000, 0)

	msg := &modes.Message{ICAO: 0x1, AddrType: modes.AddrModeS, TimestampMsg: 42}
	first := tr.Update(msg, now)
	second := tr.Update(msg, now.Add(time.Millisecond))

	require.NotNil(t, first)
	require.Nil(t, second)
	require.Equal(t, int64(1), tr.Stats.DupDropped.Load())
}

func TestUpdateGlobalCPRPairResolvesPosition(t *testing.T) {
	tr := New(false, 0, 0, 0)
	const icao = 0x4840D6
	const wantLat, wantLon = 52.2572, 3.91937

	even := cpr.Encode(wantLat, wantLon, false)
	odd := cpr.Encode(wantLat, wantLon, true)

	now := time.Unix(2000, 0)
	tr.Update(cprMsg(icao, 1, even.Lat, even.Lon, false), now)
	ac := tr.Update(cprMsg(icao, 2, odd.Lat, odd.Lon, true), now.Add(time.Second))

	require.True(t, ac.HavePos)
	require.InDelta(t, wantLat, ac.Lat, 1e-2)
	require.InDelta(t, wantLon, ac.Lon, 1e-2)
	require.Equal(t, int64(1), tr.Stats.CPRGlobalOK.Load())
}

func TestUpdateSkipsGlobalDecodeOutsideWindow(t *testing.T) {
	tr := New(false, 0, 0, 0)
	const icao = 0x4840D6
	even := cpr.Encode(52.0, 4.0, false)
	odd := cpr.Encode(52.0, 4.0, true)

	now := time.Unix(3000, 0)
	tr.Update(cprMsg(icao, 1, even.Lat, even.Lon, false), now)
	ac := tr.Update(cprMsg(icao, 2, odd.Lat, odd.Lon, true), now.Add(11*time.Second))

	require.False(t, ac.HavePos)
	require.Equal(t, int64(1), tr.Stats.CPRGlobalSkipped.Load())
}

func TestUpdateLocalDecodeAgainstHome(t *testing.T) {
	tr := New(true, 52.0, 4.0, 0)
	const icao = 0x4840D6
	f := cpr.Encode(52.05, 4.05, false)

	now := time.Unix(4000, 0)
	ac := tr.Update(cprMsg(icao, 1, f.Lat, f.Lon, false), now)

	require.True(t, ac.HavePos)
	require.InDelta(t, 52.05, ac.Lat, 1e-2)
	require.InDelta(t, 4.05, ac.Lon, 1e-2)
	require.Equal(t, int64(1), tr.Stats.CPRLocalOK.Load())
}

func TestRemoveStalePrunesOldAircraft(t *testing.T) {
	tr := New(false, 0, 0, 0)
	now := time.Unix(5000, 0)

	tr.Update(&modes.Message{ICAO: 0x1, AddrType: modes.AddrModeS, TimestampMsg: 1}, now)
	removed := tr.RemoveStale(now.Add(StaleTTL + time.Second))

	require.Equal(t, 1, removed)
	require.Equal(t, 0, tr.Len())
}

func TestAddSinkReceivesDispatch(t *testing.T) {
	tr := New(false, 0, 0, 0)
	now := time.Unix(6000, 0)

	var got *modes.Message
	tr.AddSink(func(msg *modes.Message, ac *Aircraft) {
		got = msg
	})

	msg := &modes.Message{ICAO: 0x1, AddrType: modes.AddrModeS, TimestampMsg: 1}
	tr.Update(msg, now)

	require.Same(t, msg, got)
}
