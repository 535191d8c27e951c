package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fystack/taixiu-predictor/pkg/common/logger"
	"github.com/fystack/taixiu-predictor/pkg/events"
	"github.com/fystack/taixiu-predictor/pkg/infra"
)

var (
	printerConsumer string
	printerLogFile  string
)

var natsPrinterCmd = &cobra.Command{
	Use:   "nats-printer",
	Short: "Print prediction events from the JetStream stream",
	RunE:  runNatsPrinter,
}

func init() {
	natsPrinterCmd.Flags().StringVar(&printerConsumer, "consumer", "nats-printer", "Durable consumer name")
	natsPrinterCmd.Flags().StringVar(&printerLogFile, "log", "logs/nats.log", "Append events to this file (empty disables)")
}

func runNatsPrinter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if printerLogFile != "" {
		if err := os.MkdirAll(filepath.Dir(printerLogFile), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(printerLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = io.MultiWriter(os.Stdout, f)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := infra.GetNATSConnection(cfg.NATS, cfg.Environment)
	if err != nil {
		return err
	}
	defer nc.Close()

	subject := cfg.NATS.SubjectPrefix + ".>"
	mq, err := infra.NewNATsMessageQueueManager(ctx, cfg.NATS.StreamName, []string{subject}, nc)
	if err != nil {
		return err
	}
	queue, err := mq.NewMessageQueue(ctx, printerConsumer, subject)
	if err != nil {
		return err
	}
	defer queue.Close()

	err = queue.Dequeue(func(subject string, msg []byte) error {
		var ev events.PredictorEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.Error("Unmarshal error", "subject", subject, "err", err)
			return infra.ErrPermament
		}
		logger.Info("Received event", "subject", subject, "type", ev.Type, "stream", ev.Stream)
		_, err := fmt.Fprintf(out, "[%s] %s\n", subject, msg)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info("Subscribed", "subject", subject, "consumer", printerConsumer)

	<-ctx.Done()
	return nil
}
