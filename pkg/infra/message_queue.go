package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fystack/taixiu-predictor/pkg/common/logger"
)

var (
	ErrPermament   = errors.New("permanent messaging error")
	ErrNoConsumer  = errors.New("message queue has no consumer")
	MaxStreamBytes = int64(64 * 1024 * 1024)
)

type MessageQueue interface {
	Enqueue(topic string, message []byte, options *EnqueueOptions) error
	// handler shouldn't be a blocking call as it would trigger redelivery of the message
	// if certain period of time has passed without ack.
	Dequeue(handler func(subject string, message []byte) error) error
	Close()
}

type EnqueueOptions struct {
	IdempotententKey string
}

type msgQueue struct {
	js              jetstream.JetStream
	consumer        jetstream.Consumer
	consumerContext jetstream.ConsumeContext
}

type NATsMessageQueueManager struct {
	streamName string
	js         jetstream.JetStream
}

// NewNATsMessageQueueManager creates or updates the stream that owns
// subjectWildCards. Predictions are retained by age so several readers can
// consume them independently.
func NewNATsMessageQueueManager(ctx context.Context, streamName string, subjectWildCards []string, nc *nats.Conn) (*NATsMessageQueueManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	if stream, err := js.Stream(ctx, streamName); err == nil {
		if info, err := stream.Info(ctx); err == nil {
			logger.Info("Stream found", "name", info.Config.Name, "subjects", info.Config.Subjects, "msgs", info.State.Msgs)
		}
	} else {
		logger.Warn("Stream not found, creating new stream", "stream", streamName)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Tai/Xiu predictions for " + streamName,
		Subjects:    subjectWildCards,
		MaxBytes:    MaxStreamBytes,
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      2 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", streamName, err)
	}

	return &NATsMessageQueueManager{streamName: streamName, js: js}, nil
}

// NewProducer returns a queue that can only publish.
func (m *NATsMessageQueueManager) NewProducer() MessageQueue {
	return &msgQueue{js: m.js}
}

// NewMessageQueue binds a durable consumer filtered on subject.
func (m *NATsMessageQueueManager) NewMessageQueue(ctx context.Context, consumerName, subject string) (MessageQueue, error) {
	cfg := jetstream.ConsumerConfig{
		Name:           consumerName,
		Durable:        consumerName,
		MaxAckPending:  16,
		FilterSubjects: []string{subject},
		MaxDeliver:     3,
		AckPolicy:      jetstream.AckExplicitPolicy,
	}
	logger.Info("Creating consumer for subject", "name", cfg.Name, "filterSubjects", cfg.FilterSubjects)
	consumer, err := m.js.CreateOrUpdateConsumer(ctx, m.streamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", consumerName, err)
	}
	return &msgQueue{js: m.js, consumer: consumer}, nil
}

func (mq *msgQueue) Enqueue(topic string, message []byte, options *EnqueueOptions) error {
	logger.Debug("Enqueueing message", "topic", topic, "size", len(message))
	header := nats.Header{}
	if options != nil && options.IdempotententKey != "" {
		header.Add(nats.MsgIdHdr, options.IdempotententKey)
	}

	_, err := mq.js.PublishMsg(context.Background(), &nats.Msg{
		Subject: topic,
		Data:    message,
		Header:  header,
	})
	if err != nil {
		return fmt.Errorf("error enqueueing message: %w", err)
	}
	return nil
}

func (mq *msgQueue) Dequeue(handler func(subject string, message []byte) error) error {
	if mq.consumer == nil {
		return ErrNoConsumer
	}
	c, err := mq.consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(msg.Subject(), msg.Data()); err != nil {
			if errors.Is(err, ErrPermament) {
				logger.Warn("Permanent error on message", "subject", msg.Subject())
				_ = msg.Term()
				return
			}
			logger.Error("Error handling message", "subject", msg.Subject(), "error", err)
			_ = msg.Nak()
			return
		}
		if err := msg.Ack(); err != nil {
			logger.Error("Error acknowledging message", "error", err)
		}
	})
	mq.consumerContext = c
	return err
}

func (mq *msgQueue) Close() {
	if mq.consumerContext != nil {
		mq.consumerContext.Stop()
	}
}
