package ws

import (
	"context"
	"time"

	"github.com/okian/scoreboard/pkg/logger"
)

// Config holds connection limits and timing.
type Config struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

// DefaultConfig returns the production connection settings.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4 * 1024,
		SendBuffer:     64,
	}
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithConfig replaces the connection settings.
func WithConfig(c Config) Option {
	return func(h *Hub) {
		h.config = c
	}
}

// WithAllowedOrigins sets the browser origins allowed to connect. "*" allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		h.config.AllowedOrigins = origins
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSnapshot sets the source of the sendData payload delivered on join.
func WithSnapshot(fn func(ctx context.Context) (any, error)) Option {
	return func(h *Hub) {
		h.snapshot = fn
	}
}

// WithState sets the source of the boardState payload delivered on join.
func WithState(fn func(ctx context.Context) (any, error)) Option {
	return func(h *Hub) {
		h.state = fn
	}
}
