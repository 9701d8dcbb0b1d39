package stream

import (
	"context"
	"time"

	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/watcher"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// Pump drains signaled keys from a watch service and broadcasts their
// events through a hub.
type Pump struct {
	svc *watcher.WatchService
	hub *Hub
	log logger.Logger
}

// NewPump creates a pump connecting svc to hub.
func NewPump(svc *watcher.WatchService, hub *Hub, log logger.Logger) *Pump {
	return &Pump{svc: svc, hub: hub, log: log}
}

// Run takes keys until ctx is done or the watch service closes. Each
// signaled key is drained, broadcast, and reset so it can signal again.
func (p *Pump) Run(ctx context.Context) error {
	for {
		key, err := p.svc.Take(ctx)
		if err != nil {
			if err == watchkey.ErrQueueClosed || ctx.Err() != nil {
				return nil
			}
			return err
		}

		path := key.Watchable()
		for _, ev := range key.Events() {
			p.hub.Broadcast(Event{
				Path:      path,
				Kind:      ev.Kind.String(),
				Name:      ev.Name,
				Timestamp: time.Now().UTC(),
			})
		}

		if !key.Reset() {
			p.log.Debug("watch key no longer active", "path", path)
		}
	}
}
