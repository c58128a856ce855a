package feedsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/okian/scoreboard/pkg/logger"
)

// Watcher logs what the relay pushes to websocket viewers.
type Watcher struct {
	url    string
	pushes atomic.Int64
	logger logger.Logger
}

// NewWatcher derives the websocket endpoint from the relay base URL.
func NewWatcher(baseURL string, l logger.Logger) (*Watcher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return &Watcher{url: u.String(), logger: l}, nil
}

// Pushes returns how many messages were received.
func (w *Watcher) Pushes() int64 { return w.pushes.Load() }

// Run joins the scoreboard room and logs every message until ctx is done or the
// connection drops.
func (w *Watcher) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrRelay, w.url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(map[string]string{"type": "joinRoom", "room": "scoreboard"}); err != nil {
		return fmt.Errorf("%w: join: %w", ErrRelay, err)
	}
	w.logger.Info(ctx, "watching relay pushes", logger.String("url", w.url))

	for {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: read: %w", ErrRelay, err)
		}
		w.pushes.Add(1)
		w.logger.Debug(ctx, "push received",
			logger.String("type", msg.Type),
			logger.Int("bytes", len(msg.Data)))
	}
}
