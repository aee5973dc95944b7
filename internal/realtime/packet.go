package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// engine.io v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// socket.io v5 packet types, carried inside engine.io messages.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
)

var errEmptyPacket = errors.New("empty packet")

// packet is a decoded engine.io frame. The socket fields are set only for
// engine message frames.
type packet struct {
	engine    byte
	socket    byte
	namespace string
	ackID     string
	data      []byte
}

func parsePacket(b []byte) (packet, error) {
	if len(b) == 0 {
		return packet{}, errEmptyPacket
	}
	p := packet{engine: b[0]}
	switch p.engine {
	case engineOpen, engineClose, enginePing, enginePong, engineUpgrade, engineNoop:
		p.data = b[1:]
		return p, nil
	case engineMessage:
	default:
		return packet{}, fmt.Errorf("unknown engine packet type %q", p.engine)
	}

	rest := b[1:]
	if len(rest) == 0 {
		return packet{}, fmt.Errorf("message packet without socket type")
	}
	p.socket = rest[0]
	switch p.socket {
	case socketConnect, socketDisconnect, socketEvent, socketAck, socketConnectError:
	default:
		return packet{}, fmt.Errorf("unsupported socket packet type %q", p.socket)
	}
	rest = rest[1:]

	p.namespace = "/"
	if len(rest) > 0 && rest[0] == '/' {
		i := strings.IndexByte(string(rest), ',')
		if i < 0 {
			p.namespace = string(rest)
			return p, nil
		}
		p.namespace = string(rest[:i])
		rest = rest[i+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	p.ackID = string(rest[:i])
	p.data = rest[i:]
	return p, nil
}

// handshake is the payload of the engine.io open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int64  `json:"maxPayload"`
}

// liveness is how long the connection may stay silent before the server is
// considered gone: one ping interval plus the ping timeout.
func (h handshake) liveness() time.Duration {
	if h.PingInterval <= 0 && h.PingTimeout <= 0 {
		return 0
	}
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

func parseHandshake(p packet) (handshake, error) {
	if p.engine != engineOpen {
		return handshake{}, fmt.Errorf("expected open packet, got %q", p.engine)
	}
	var h handshake
	if err := json.Unmarshal(p.data, &h); err != nil {
		return handshake{}, fmt.Errorf("decoding handshake: %w", err)
	}
	if h.SID == "" {
		return handshake{}, fmt.Errorf("handshake without sid")
	}
	return h, nil
}

// encodeConnect builds the default-namespace connect packet, with auth
// payload when a token is supplied.
func encodeConnect(token string) ([]byte, error) {
	if token == "" {
		return []byte{engineMessage, socketConnect}, nil
	}
	auth, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, fmt.Errorf("encoding connect auth: %w", err)
	}
	return append([]byte{engineMessage, socketConnect}, auth...), nil
}

// decodeEvent splits an event packet's data into its name and arguments.
func decodeEvent(data []byte) (string, []json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("decoding event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("event without name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decoding event name: %w", err)
	}
	return name, parts[1:], nil
}

// connectErrorMessage extracts the reason from a connect error packet.
func connectErrorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return strings.Trim(s, `"`)
	}
	return "connection refused"
}
