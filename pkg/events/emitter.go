package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

// Emitter publishes predictor events on <prefix>.<stream>.<type>.
type Emitter interface {
	EmitPrediction(stream string, ev PredictionEvent) error
	EmitSession(stream string, s game.Session) error
	EmitError(stream string, err error) error
	Emit(event PredictorEvent) error
	Close()
}

type emitter struct {
	queue         infra.MessageQueue
	subjectPrefix string
	now           func() time.Time
}

func NewEmitter(queue infra.MessageQueue, subjectPrefix string) Emitter {
	return &emitter{
		queue:         queue,
		subjectPrefix: subjectPrefix,
		now:           time.Now,
	}
}

// Subject is the subject an event of kind is published on.
func Subject(prefix, stream, kind string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, stream, kind)
}

// EmitPrediction is idempotent per stream and session: JetStream drops a
// republish of the same prediction inside its duplicate window.
func (e *emitter) EmitPrediction(stream string, ev PredictionEvent) error {
	return e.emit(PredictorEvent{
		Type:      EventPrediction,
		Stream:    stream,
		Data:      ev,
		Timestamp: e.now().UTC().Unix(),
	}, &infra.EnqueueOptions{
		IdempotententKey: fmt.Sprintf("%s:%d", stream, ev.SessionID),
	})
}

func (e *emitter) EmitSession(stream string, s game.Session) error {
	return e.emit(PredictorEvent{
		Type:      EventSession,
		Stream:    stream,
		Data:      s,
		Timestamp: e.now().UTC().Unix(),
	}, &infra.EnqueueOptions{
		IdempotententKey: fmt.Sprintf("%s:session:%d", stream, s.ID),
	})
}

func (e *emitter) EmitError(stream string, err error) error {
	payload := map[string]string{}
	if err != nil {
		payload["message"] = err.Error()
	}
	return e.Emit(PredictorEvent{
		Type:      EventError,
		Stream:    stream,
		Data:      payload,
		Timestamp: e.now().UTC().Unix(),
	})
}

func (e *emitter) Emit(event PredictorEvent) error {
	return e.emit(event, nil)
}

func (e *emitter) emit(event PredictorEvent, opts *infra.EnqueueOptions) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.queue.Enqueue(Subject(e.subjectPrefix, event.Stream, event.Type), data, opts)
}

func (e *emitter) Close() {
	if e.queue != nil {
		e.queue.Close()
	}
}
