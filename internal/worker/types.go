package worker

import (
	"time"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/internal/predictor"
	"github.com/fystack/taixiu-predictor/pkg/events"
)

// Worker is the interface implemented by all worker types.
type Worker interface {
	Start()
	Stop()
}

// Snapshot is the latest prediction a worker produced.
type Snapshot struct {
	Latest game.Session           `json:"latest"`
	Result predictor.Result       `json:"result"`
	Event  events.PredictionEvent `json:"event"`
	At     time.Time              `json:"at"`
}
