package receiver

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/regentag/go1090/internal/convert"
	"github.com/regentag/go1090/internal/demod"
	"github.com/regentag/go1090/internal/fifo"
	"github.com/regentag/go1090/internal/modes"
	"github.com/regentag/go1090/internal/tracker"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	pool, err := fifo.NewPool(2, 4096, 256)
	require.NoError(t, err)

	tr := tracker.New(false, 0, 0, 0)
	d := New(pool, nil, nil, modes.NewICAOCache(), tr, log.New(io.Discard), 2000000)
	return d
}

// TestCSVReplayDispatchesCleanMessage feeds one DF17 identification frame
// with a valid CRC through CSVReplay -> handleCandidate -> modes.Decode ->
// tracker.Update and checks that the tracker now holds its aircraft.
func TestCSVReplayDispatchesCleanMessage(t *testing.T) {
	d := newTestDriver(t)

	csv := "0,8D4840D6202CC371C32CE0576098\n"
	err := d.CSVReplay(context.Background(), strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Equal(t, 1, d.Track.Len())
}

func TestCSVReplaySkipsMalformedLines(t *testing.T) {
	d := newTestDriver(t)
	csv := "not,a,valid,line\nbogus\n"
	err := d.CSVReplay(context.Background(), strings.NewReader(csv), 0)
	require.NoError(t, err)
}

func TestDriverRunHaltsOnEOF(t *testing.T) {
	pool, err := fifo.NewPool(2, 256, 32)
	require.NoError(t, err)
	tr := tracker.New(false, 0, 0, 0)

	c, err := convert.Select(convert.FormatUC8, false, false, 2000000)
	require.NoError(t, err)

	d := New(pool, c, demod.NewModeS2M(), modes.NewICAOCache(), tr, log.New(io.Discard), 2000000)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = d.Run(ctx, strings.NewReader(""))
	require.ErrorIs(t, err, io.EOF)
	require.True(t, pool.Halted())
}
