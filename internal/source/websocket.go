package source

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fystack/taixiu-predictor/internal/game"
	"github.com/fystack/taixiu-predictor/pkg/common/config"
	"github.com/fystack/taixiu-predictor/pkg/retry"
)

// WSSource keeps a socket open to a push feed and reconnects with
// exponential backoff when it drops.
type WSSource struct {
	url          string
	dialer       *websocket.Dialer
	pingInterval time.Duration
	reconnectMax time.Duration
	log          *slog.Logger

	mu        sync.Mutex
	connected bool
}

func NewWSSource(cfg config.SourceConfig, log *slog.Logger) *WSSource {
	ping := cfg.Websocket.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &WSSource{
		url: cfg.URL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.Websocket.HandshakeTimeout,
		},
		pingInterval: ping,
		reconnectMax: cfg.Websocket.ReconnectMax,
		log:          log,
	}
}

func (s *WSSource) Name() string { return "websocket" }

func (s *WSSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *WSSource) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Stream delivers decoded sessions to out until ctx is cancelled. Sessions
// may repeat across reconnects; the receiving History deduplicates them.
func (s *WSSource) Stream(ctx context.Context, out chan<- game.Session) error {
	for {
		var conn *websocket.Conn
		err := retry.Exponential(ctx, func() error {
			c, _, err := s.dialer.DialContext(ctx, s.url, nil)
			if err != nil {
				return err
			}
			conn = c
			return nil
		}, retry.ExponentialConfig{
			InitialInterval: time.Second,
			MaxInterval:     s.reconnectMax,
			OnRetry: func(err error, next time.Duration) {
				s.log.Warn("Websocket dial failed", "url", s.url, "error", err, "retry_in", next)
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Join(ErrSourceUnavailable, err)
		}

		s.log.Info("Websocket connected", "url", s.url)
		s.setConnected(true)
		err = s.readLoop(ctx, conn, out)
		s.setConnected(false)
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn("Websocket disconnected, reconnecting", "url", s.url, "error", err)
	}
}

func (s *WSSource) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- game.Session) error {
	readTimeout := 2 * s.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(ctx, conn, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		decoded, err := DecodeMessage(msg)
		if err != nil {
			s.log.Warn("Dropping undecodable websocket message", "error", err)
			continue
		}
		if decoded.Skipped > 0 {
			s.log.Warn("Skipped malformed sessions", "count", decoded.Skipped)
		}
		for _, session := range decoded.Sessions {
			select {
			case out <- session:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *WSSource) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// unblock ReadMessage
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				s.log.Warn("Websocket ping failed", "error", err)
				return
			}
		}
	}
}
