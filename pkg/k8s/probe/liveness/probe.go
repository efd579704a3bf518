package liveness

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const watchInterval = 5 * time.Second

// Liver reports whether a watched component is still healthy.
type Liver interface {
	IsAlive(ctx context.Context) bool
}

// Prober aggregates component health for the k8s probe endpoint.
type Prober interface {
	IsAlive() bool
	Watch(liver Liver)
}

type Probe struct {
	ctx   context.Context
	alive atomic.Bool
}

func NewProbe(ctx context.Context) *Probe {
	p := &Probe{ctx: ctx}
	p.alive.Store(true)
	return p
}

func (p *Probe) IsAlive() bool {
	return p.alive.Load()
}

// Watch polls the liver in background until the app context is cancelled.
// Does not block the caller.
func (p *Probe) Watch(liver Liver) {
	go func() {
		t := time.NewTicker(watchInterval)
		defer t.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-t.C:
				alive := liver.IsAlive(p.ctx)
				if !alive && p.alive.Load() {
					log.Warn().Msg("[liveness-probe] component reported unhealthy")
				}
				p.alive.Store(alive)
			}
		}
	}()
}
