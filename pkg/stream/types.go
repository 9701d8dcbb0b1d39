// Package stream broadcasts watch events to WebSocket subscribers.
//
// A Hub fans events out to connected clients; a Pump drains signaled
// watch keys from the watch service and feeds the hub.
package stream

import (
	"time"
)

// Event is the JSON payload sent to subscribers for one filesystem event.
type Event struct {
	Path      string    `json:"path"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds hub settings.
type Config struct {
	// SendBufferSize is the per-client outbound queue length. Clients
	// that fall further behind are disconnected.
	SendBufferSize int

	// WriteTimeout bounds each WebSocket write.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}
