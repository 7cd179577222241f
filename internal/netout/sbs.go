package netout

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regentag/go1090/internal/modes"
	"github.com/regentag/go1090/internal/tracker"
)

// SBSServer accepts TCP clients and streams every dispatched update to
// each of them as BaseStation/SBS-1 CSV lines ("MSG,<type>,...,<icao>,...
// ,<callsign>,<alt>,<speed>,<heading>,<lat>,<lon>,..."), the de facto
// format most ADS-B consumers (e.g. virtual radar clients) expect.
type SBSServer struct {
	*forwarder
	listener   net.Listener
	logger     *log.Logger
	registerCh chan registration
}

// NewSBSServer binds addr and returns a server ready for Serve.
func NewSBSServer(addr string, logger *log.Logger) (*SBSServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netout: sbs listen: %w", err)
	}
	s := &SBSServer{
		forwarder:  newForwarder("sbs", logger),
		listener:   ln,
		logger:     logger,
		registerCh: make(chan registration, 16),
	}
	return s, nil
}

// Addr returns the server's bound address (useful when addr was ":0").
func (s *SBSServer) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections and fans out formatted updates until the
// listener is closed.
func (s *SBSServer) Serve() {
	go s.pump()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleClient(conn)
	}
}

// Close stops accepting new clients; existing client writer goroutines
// exit once their connection errors.
func (s *SBSServer) Close() error {
	return s.listener.Close()
}

func (s *SBSServer) handleClient(conn net.Conn) {
	defer conn.Close()
	ch := make(chan string, queueDepth)

	s.registerCh <- registration{conn: conn, ch: ch, add: true}
	defer func() { s.registerCh <- registration{conn: conn, add: false} }()

	w := bufio.NewWriter(conn)
	for line := range ch {
		if _, err := w.WriteString(line); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

type registration struct {
	conn net.Conn
	ch   chan string
	add  bool
}

// pump is the single goroutine that owns the live-client set, so
// register/unregister/broadcast never need their own mutex.
func (s *SBSServer) pump() {
	live := make(map[net.Conn]chan string)

	for {
		select {
		case reg := <-s.registerCh:
			if reg.add {
				live[reg.conn] = reg.ch
			} else if ch, ok := live[reg.conn]; ok {
				close(ch)
				delete(live, reg.conn)
			}
		case u, ok := <-s.ch:
			if !ok {
				return
			}
			line := formatSBS(u.msg, u.ac)
			for _, ch := range live {
				select {
				case ch <- line:
				default:
					s.dropped++
				}
			}
		}
	}
}

// formatSBS renders one BaseStation "MSG" line from the aircraft's
// accumulated state, not only from the fields this message carries:
// callsign, altitude, latitude and longitude are always written, while
// speed, heading and squawk are left blank when zero.
func formatSBS(msg *modes.Message, ac *tracker.Aircraft) string {
	now := time.Now().UTC()
	date := now.Format("2006/01/02")
	clock := now.Format("15:04:05.000")

	msgType := 3 // generic position/identity line; refined below
	switch {
	case msg.Has(modes.FlagCallsign):
		msgType = 1
	case msg.Has(modes.FlagCPR):
		msgType = 3
	case msg.Has(modes.FlagVelocity):
		msgType = 4
	case msg.Has(modes.FlagIdentity):
		msgType = 6
	}

	return fmt.Sprintf(
		"MSG,%d,1,1,%06X,1,%s,%s,%s,%s,%s,%d,%s,%s,%.5f,%.5f,%s,%s,0,0,0,0\n",
		msgType, msg.ICAO, date, clock, date, clock,
		ac.Callsign, ac.Altitude, formatSpeed(ac), formatHeading(ac),
		ac.Lat, ac.Lon, formatSquawk(ac), "",
	)
}

func formatSpeed(ac *tracker.Aircraft) string {
	if ac.Speed == 0 {
		return ""
	}
	return fmt.Sprintf("%.0f", ac.Speed)
}

func formatHeading(ac *tracker.Aircraft) string {
	if ac.Heading == 0 {
		return ""
	}
	return fmt.Sprintf("%.0f", ac.Heading)
}

func formatSquawk(ac *tracker.Aircraft) string {
	if ac.Squawk == 0 {
		return ""
	}
	return fmt.Sprintf("%04o", ac.Squawk)
}
