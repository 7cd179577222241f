package netout

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/regentag/go1090/internal/modes"
	"github.com/regentag/go1090/internal/tracker"
)

func TestFormatSBSPositionLine(t *testing.T) {
	msg := &modes.Message{ICAO: 0xABCDEF, Flags: modes.FlagCPR}
	ac := &tracker.Aircraft{
		Lat: 51.5, Lon: -0.1, Altitude: 35000, Speed: 420, Heading: 270, Squawk: 0o1200,
	}
	line := formatSBS(msg, ac)
	require.Contains(t, line, "MSG,3,1,1,ABCDEF")
	require.Contains(t, line, "35000")
}

func TestFormatSBSCallsignLine(t *testing.T) {
	msg := &modes.Message{ICAO: 0x112233, Flags: modes.FlagCallsign}
	ac := &tracker.Aircraft{Callsign: "TEST123"}
	line := formatSBS(msg, ac)
	require.Contains(t, line, "MSG,1,1,1,112233")
	require.Contains(t, line, "TEST123")
}

func TestSBSServerBroadcastsToConnectedClient(t *testing.T) {
	srv, err := NewSBSServer("127.0.0.1:0", log.New(io.Discard))
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// Give the accept/register goroutines a moment to register the client
	// before publishing, since registration happens asynchronously over
	// the pump's channel.
	time.Sleep(50 * time.Millisecond)

	srv.Sink(&modes.Message{ICAO: 0x424242, Flags: modes.FlagIdentity}, &tracker.Aircraft{Squawk: 0o7700})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "424242")
}
