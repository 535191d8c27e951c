package events

import (
	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
)

const (
	EventPrediction = "prediction"
	EventSession    = "session"
	EventError      = "error"
)

// PredictorEvent is the envelope of every message published by the worker.
type PredictorEvent struct {
	Type      string `json:"type"`
	Stream    string `json:"stream"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// PredictionEvent is the published view of one prediction.
type PredictionEvent struct {
	SessionID        int64           `json:"session_id"`
	Dice             [3]int          `json:"dice"`
	Total            int             `json:"total"`
	Result           game.Outcome    `json:"result"`
	NextSessionID    int64           `json:"next_session_id"`
	Prediction       game.Outcome    `json:"prediction"`
	Label            string          `json:"label"`
	Confidence       float64         `json:"confidence"`
	Explanation      string          `json:"explanation"`
	BreakProbability float64         `json:"break_probability"`
	Risk             predictor.Risk  `json:"risk"`
	Stage            predictor.Stage `json:"stage"`
}

func NewPredictionEvent(latest game.Session, res predictor.Result) PredictionEvent {
	return PredictionEvent{
		SessionID:        latest.ID,
		Dice:             latest.Dice,
		Total:            latest.Total,
		Result:           latest.Outcome,
		NextSessionID:    res.NextSessionID,
		Prediction:       res.Prediction,
		Label:            res.Label,
		Confidence:       res.Confidence,
		Explanation:      res.Explanation,
		BreakProbability: res.BreakProbability,
		Risk:             res.Risk,
		Stage:            res.Stage,
	}
}
