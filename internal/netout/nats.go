package netout

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// NATSSink publishes every dispatched update as a JSON payload to a NATS
// subject, for downstream consumers that want a message bus feed instead
// of a raw TCP stream.
type NATSSink struct {
	*forwarder
	conn    *nats.Conn
	subject string
}

// natsPayload is the wire shape published on the subject. Field names are
// chosen for the JSON consumer, not for internal reuse.
type natsPayload struct {
	ICAO      uint32  `json:"icao"`
	AddrType  string  `json:"addr_type"`
	Callsign  string  `json:"callsign,omitempty"`
	Squawk    int     `json:"squawk,omitempty"`
	Altitude  int     `json:"altitude_ft,omitempty"`
	Speed     float64 `json:"speed_kt,omitempty"`
	Heading   float64 `json:"heading_deg,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	HavePos   bool    `json:"have_pos"`
	CRCOK     bool    `json:"crc_ok"`
	SeenLastS int64   `json:"seen_last_unix"`
}

// NewNATSSink dials url and returns a sink that publishes to subject.
func NewNATSSink(url, subject string, logger *log.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("netout: nats connect: %w", err)
	}
	s := &NATSSink{
		forwarder: newForwarder("nats", logger),
		conn:      conn,
		subject:   subject,
	}
	go s.run()
	return s, nil
}

// Close closes the underlying connection. Updates still queued for the
// publishing goroutine are not published.
func (s *NATSSink) Close() {
	s.conn.Close()
}

func (s *NATSSink) run() {
	for u := range s.ch {
		data, err := json.Marshal(buildNATSPayload(u))
		if err != nil {
			s.logger.Error("nats sink: marshal failed", "err", err)
			continue
		}
		if err := s.conn.Publish(s.subject, data); err != nil {
			s.logger.Error("nats sink: publish failed", "err", err)
		}
	}
}

func buildNATSPayload(u update) natsPayload {
	return natsPayload{
		ICAO:      u.msg.ICAO,
		AddrType:  u.ac.AddrType.String(),
		Callsign:  u.ac.Callsign,
		Squawk:    u.ac.Squawk,
		Altitude:  u.ac.Altitude,
		Speed:     u.ac.Speed,
		Heading:   u.ac.Heading,
		Lat:       u.ac.Lat,
		Lon:       u.ac.Lon,
		HavePos:   u.ac.HavePos,
		CRCOK:     u.msg.CRCOK,
		SeenLastS: u.ac.SeenLast.Unix(),
	}
}
