package main

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/regentag/go1090/internal/demod"
)

func TestSelectDemodulatorMapsSampleRates(t *testing.T) {
	cases := []struct {
		rate int
		want any
	}{
		{2_000_000, &demod.ModeS2M{}},
		{2_400_000, &demod.ModeAC{}},
		{8_000_000, &demod.ModeS8M{}},
	}
	for _, c := range cases {
		got, err := selectDemodulator(c.rate, 0)
		require.NoError(t, err)
		require.IsType(t, c.want, got)
	}
}

func TestSelectDemodulatorRejectsUnknownRate(t *testing.T) {
	_, err := selectDemodulator(1_000_000, 0)
	require.Error(t, err)
}

func TestSelectDemodulatorAppliesMaxErrorBitsOverride(t *testing.T) {
	got, err := selectDemodulator(2_000_000, 3)
	require.NoError(t, err)
	require.Equal(t, 3, got.(*demod.ModeS2M).MaxErrorBits)
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, log.DebugLevel, parseLogLevel("debug"))
	require.Equal(t, log.WarnLevel, parseLogLevel("warn"))
	require.Equal(t, log.ErrorLevel, parseLogLevel("error"))
	require.Equal(t, log.InfoLevel, parseLogLevel("info"))
	require.Equal(t, log.InfoLevel, parseLogLevel(""))
	require.Equal(t, log.InfoLevel, parseLogLevel("nonsense"))
}
