package exchange

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"flasharb/internal/model"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 16 * time.Second
	readTimeout    = 60 * time.Second
	writeTimeout   = 5 * time.Second
)

// stream describes one venue WebSocket session.
type stream struct {
	name   string // log prefix, e.g. "BybitClient"
	url    string
	header http.Header

	// subscribe returns the messages sent right after connecting.
	subscribe func() []any
	// ping, when set, is sent every pingInterval.
	ping         any
	pingInterval time.Duration

	// handle decodes one frame. Control frames yield no quotes and no error.
	handle func(msg []byte) ([]model.Quote, error)
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	return b
}

// runStream keeps a session alive until ctx is cancelled, reconnecting with
// exponential backoff after every failure.
func runStream(ctx context.Context, logger *slog.Logger, s stream, quoteChan chan<- model.Quote) error {
	bo := newBackoff()
	for {
		if ctx.Err() != nil {
			logger.Info(s.name + ": context cancelled, shutting down")
			return nil
		}

		logger.Info(s.name+": connecting to WebSocket", "url", s.url)
		err := s.session(ctx, logger, quoteChan, bo)
		if ctx.Err() != nil {
			logger.Info(s.name + ": context cancelled, shutting down")
			return nil
		}

		wait := bo.NextBackOff()
		logger.Error(s.name+": stream interrupted", "error", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s stream) session(ctx context.Context, logger *slog.Logger, quoteChan chan<- model.Quote, bo backoff.BackOff) error {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		c.Close()
	}()

	if s.subscribe != nil {
		for _, msg := range s.subscribe() {
			if err := writeJSON(c, msg); err != nil {
				return err
			}
		}
	}

	// Reset backoff on successful connection
	bo.Reset()
	logger.Info(s.name + ": connected successfully")

	if s.ping != nil && s.pingInterval > 0 {
		go func() {
			ticker := time.NewTicker(s.pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := writeJSON(c, s.ping); err != nil {
						logger.Warn(s.name+": ping failed", "error", err)
						c.Close()
						return
					}
				}
			}
		}()
	}

	for {
		c.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := c.ReadMessage()
		if err != nil {
			return err
		}

		quotes, err := s.handle(message)
		if err != nil {
			logger.Warn(s.name+": failed to parse message", "error", err)
			continue
		}
		for _, q := range quotes {
			select {
			case quoteChan <- q:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func writeJSON(c *websocket.Conn, v any) error {
	payload, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}
	c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteMessage(websocket.TextMessage, payload)
}

var errNoLevels = errors.New("empty book side")
