package modes

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecodeCleanDF17Identity(t *testing.T) {
	msg := mustHex(t, "8D4840D6202CC371C32CE0576098")

	mm, err := Decode(msg, nil, true, false)
	require.NoError(t, err)

	require.Equal(t, 17, mm.DF)
	require.Equal(t, uint32(0x4840D6), mm.ICAO)
	require.Equal(t, 4, mm.METype)
	require.Equal(t, "KLM1023 ", mm.Callsign)
	require.Equal(t, "KLM1023", strings.TrimRight(mm.Callsign, " "))
	require.Equal(t, uint32(0), mm.CRCResidue)
	require.True(t, mm.CRCOK)
	require.Equal(t, AddrModeSChecked, mm.AddrType)
}

func TestDecodeOneBitCorruptedDF17(t *testing.T) {
	clean := mustHex(t, "8D4840D6202CC371C32CE0576098")
	corrupt := append([]byte(nil), clean...)

	bit := 40
	corrupt[bit/8] ^= 1 << (7 - uint(bit%8))

	mm, err := Decode(corrupt, nil, true, false)
	require.NoError(t, err)

	require.True(t, mm.CRCOK)
	require.Equal(t, 1, mm.ErrorBits)
	require.Equal(t, AddrModeS, mm.AddrType, "a corrected message is lower confidence than an independently checksummed one")
	require.Equal(t, uint32(0x4840D6), mm.ICAO)
	require.Equal(t, "KLM1023 ", mm.Callsign)
}

func TestMessageLen(t *testing.T) {
	for _, df := range []int{0, 4, 5, 11} {
		require.Equal(t, ShortBits, MessageLen(df), "DF%d", df)
	}
	for _, df := range []int{16, 17, 18, 19, 20, 21, 22, 24} {
		require.Equal(t, LongBits, MessageLen(df), "DF%d", df)
	}
}
