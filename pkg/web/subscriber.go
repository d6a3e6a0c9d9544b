package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/pipeline"
)

// Subscriber is the renderer side of /ws/state: it keeps only the newest
// update, reconnecting when the stream drops.
type Subscriber struct {
	url        string
	dialer     *websocket.Dialer
	updates    *pipeline.Mailbox[pipeline.Update]
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewSubscriber creates a subscriber for a ws:// URL.
func NewSubscriber(url string, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:        url,
		dialer:     websocket.DefaultDialer,
		updates:    pipeline.NewMailbox[pipeline.Update](),
		logger:     log.Or(logger, "subscriber"),
		retryDelay: time.Second,
	}
}

// Updates holds the newest update received.
func (s *Subscriber) Updates() *pipeline.Mailbox[pipeline.Update] { return s.updates }

// Run connects and reads until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("state stream dropped", "url", s.url, "error", err, "retry_in", s.retryDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("subscribed", "url", s.url)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var u pipeline.Update
		if err := json.Unmarshal(data, &u); err != nil {
			s.logger.Warn("bad update", "error", err)
			continue
		}
		s.updates.Put(u)
	}
}
