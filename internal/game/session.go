package game

import (
	"errors"
	"fmt"
	"strings"
)

// HighThreshold is the smallest three-dice total that counts as High (Tài).
const HighThreshold = 11

var ErrMalformedSession = errors.New("malformed session")

// Outcome is the binary result of a round. The zero value means no outcome,
// which doubles as an abstain vote inside the predictor.
type Outcome int8

const (
	None Outcome = iota
	High
	Low
)

func (o Outcome) String() string {
	switch o {
	case High:
		return "Tài"
	case Low:
		return "Xỉu"
	default:
		return "None"
	}
}

// Opposite returns the other outcome. None stays None.
func (o Outcome) Opposite() Outcome {
	switch o {
	case High:
		return Low
	case Low:
		return High
	default:
		return None
	}
}

func (o Outcome) Valid() bool {
	return o == High || o == Low
}

func (o Outcome) MarshalText() ([]byte, error) {
	if o == None {
		return []byte(""), nil
	}
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*o = None
		return nil
	}
	parsed, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome accepts the Vietnamese labels as well as ASCII spellings.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tài", "tai", "t", "high", "h", "1":
		return High, nil
	case "xỉu", "xiu", "x", "low", "l", "2":
		return Low, nil
	case "", "none", "0":
		return None, nil
	}
	return None, fmt.Errorf("unknown outcome %q", s)
}

// OutcomeOf maps a total onto an outcome using the fixed threshold.
func OutcomeOf(total int) Outcome {
	if total >= HighThreshold {
		return High
	}
	return Low
}

// Session is one completed round.
type Session struct {
	ID      int64   `json:"session"`
	Dice    [3]int  `json:"dice"`
	Total   int     `json:"total"`
	Outcome Outcome `json:"result"`
}

// NewSession builds a record from three dice and derives total and outcome.
func NewSession(id int64, dice [3]int) Session {
	total := dice[0] + dice[1] + dice[2]
	return Session{
		ID:      id,
		Dice:    dice,
		Total:   total,
		Outcome: OutcomeOf(total),
	}
}

// HasDice reports whether every die carries a face value.
func (s Session) HasDice() bool {
	for _, d := range s.Dice {
		if d < 1 || d > 6 {
			return false
		}
	}
	return true
}

// Normalize fills the derived fields. A record keeps any outcome it already
// carries; the total is derived from dice when missing. A record that has
// neither an outcome nor dice is rejected.
func (s Session) Normalize() (Session, error) {
	if s.ID <= 0 {
		return s, fmt.Errorf("%w: session id %d", ErrMalformedSession, s.ID)
	}
	if s.Total == 0 && s.HasDice() {
		s.Total = s.Dice[0] + s.Dice[1] + s.Dice[2]
	}
	if s.Outcome == None {
		if s.Total == 0 {
			return s, fmt.Errorf("%w: session %d has no dice, total or result", ErrMalformedSession, s.ID)
		}
		s.Outcome = OutcomeOf(s.Total)
	}
	return s, nil
}

func (s Session) String() string {
	return fmt.Sprintf("#%d %v=%d %s", s.ID, s.Dice, s.Total, s.Outcome)
}
