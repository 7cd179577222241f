package receiver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/regentag/go1090/internal/modes"
)

// FileReplay opens path and runs the Driver's producer/consumer loop
// against it loopCount times (0 means forever), grounded on the teacher's
// rtl_adsb.StartReceive subprocess-stdout driver generalized to "any file
// of raw IQ samples" (spec §6).
func (d *Driver) FileReplay(ctx context.Context, path string, loopCount int) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.consume(ctx)
	}()
	defer func() {
		d.Pool.Halt()
		<-done
	}()

	for pass := 0; loopCount == 0 || pass < loopCount; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("receiver: opening %s: %w", path, err)
		}

		err = d.produce(ctx, f)
		f.Close()

		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}
		if d.Pool.Halted() {
			return nil
		}
	}
	return nil
}

// CSVReplay reads "timestamp_seconds,hex_payload" lines (one already-
// demodulated raw message per line) and injects them via d.handleCandidate
// at the recorded inter-arrival delays, scaled by speed (1.0 = real time,
// 0 = as fast as possible). It exists for scenario replay/testing without
// a real SDR or capture file, per spec §6's external-interfaces note about
// tooling around the receive path.
func (d *Driver) CSVReplay(ctx context.Context, r io.Reader, speed float64) error {
	scanner := bufio.NewScanner(r)
	var lastTS float64
	first := true

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			continue
		}

		ts, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			continue
		}
		data, ok := decodeHexPayload(strings.TrimSpace(parts[1]))
		if !ok {
			continue
		}

		if !first && speed > 0 {
			delta := time.Duration((ts - lastTS) / speed * float64(time.Second))
			if delta > 0 {
				select {
				case <-time.After(delta):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		first = false
		lastTS = ts

		bits := modes.MessageLen(int(data[0]) >> 3)
		d.handleCandidate(rawMessageFrom(data, bits, ts))
	}
	return scanner.Err()
}
