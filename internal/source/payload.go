package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fystack/taixiu-predictor/internal/game"
)

// flexInt accepts 123, 123.0 and "123".
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexInt(v)
	return nil
}

type record struct {
	Session flexInt `json:"session"`
	Dice    []int   `json:"dice"`
	Total   flexInt `json:"total"`
	Result  string  `json:"result"`
}

type historyPayload struct {
	History []json.RawMessage `json:"history"`
}

func (r record) toSession() (game.Session, error) {
	s := game.Session{ID: int64(r.Session), Total: int(r.Total)}
	if len(r.Dice) == 3 {
		copy(s.Dice[:], r.Dice)
	}
	o, err := game.ParseOutcome(r.Result)
	if err != nil {
		return s, fmt.Errorf("%w: session %d: %v", game.ErrMalformedSession, s.ID, err)
	}
	s.Outcome = o
	return s.Normalize()
}

// Decoded is the result of decoding one upstream payload.
type Decoded struct {
	Sessions []game.Session
	// Skipped counts records that could not be turned into a session.
	Skipped int
}

// DecodeHistory parses {"history":[...]} and returns the sessions sorted by
// id. Malformed records are skipped, a malformed envelope is an error.
func DecodeHistory(data []byte) (Decoded, error) {
	var payload historyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Decoded{}, fmt.Errorf("decode history payload: %w", err)
	}
	return decodeRecords(payload.History), nil
}

// DecodeMessage accepts either a full history payload or a single record, as
// pushed by socket feeds.
func DecodeMessage(data []byte) (Decoded, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Decoded{}, fmt.Errorf("decode record list: %w", err)
		}
		return decodeRecords(raw), nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Decoded{}, fmt.Errorf("decode message: %w", err)
	}
	if _, ok := probe["history"]; ok {
		return DecodeHistory(trimmed)
	}
	return decodeRecords([]json.RawMessage{trimmed}), nil
}

func decodeRecords(raw []json.RawMessage) Decoded {
	out := Decoded{Sessions: make([]game.Session, 0, len(raw))}
	for _, item := range raw {
		var rec record
		if err := json.Unmarshal(item, &rec); err != nil {
			out.Skipped++
			continue
		}
		s, err := rec.toSession()
		if err != nil {
			out.Skipped++
			continue
		}
		out.Sessions = append(out.Sessions, s)
	}
	slices.SortStableFunc(out.Sessions, func(a, b game.Session) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}
