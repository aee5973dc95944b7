package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AuthEvent is the only event name the client surfaces.
const AuthEvent = "auth_event"

// Event is one auth_event received from the backend.
type Event struct {
	ID        uuid.UUID
	Type      string
	Message   string
	Timestamp time.Time
	Payload   json.RawMessage
}

type wireEvent struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// decodeAuthEvent decodes an auth_event payload. The timestamp may be an
// ISO-8601 string or epoch milliseconds; a missing one is stamped with now.
func decodeAuthEvent(raw json.RawMessage, now time.Time) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("decoding %s: %w", AuthEvent, err)
	}
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return Event{}, err
	}
	if ts.IsZero() {
		ts = now
	}
	if w.Type == "" {
		w.Type = "unknown"
	}
	return Event{
		ID:        uuid.New(),
		Type:      w.Type,
		Message:   w.Message,
		Timestamp: ts.UTC(),
		Payload:   append(json.RawMessage(nil), raw...),
	}, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("decoding timestamp: %w", err)
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
		return t, nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %s: %w", raw, err)
	}
	return time.UnixMilli(int64(f)), nil
}

// Line renders the event the way the monitor lists it.
func (e Event) Line(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("%s [%s] %s", e.Timestamp.In(loc).Format("15:04:05"), e.Type, e.Message)
}
