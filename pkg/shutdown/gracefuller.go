package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrGracefulTimeout reports that components did not finish within the
// configured shutdown window.
var ErrGracefulTimeout = errors.New("shutdown: graceful timeout exceeded")

const defaultGracefulTimeout = 30 * time.Second

// Gracefuller coordinates graceful shutdown: components register with Add,
// report completion with Done, and main blocks in ListenCancelAndAwait.
type Gracefuller interface {
	Add(delta int)
	Done()
	SetGracefulTimeout(d time.Duration)
	ListenCancelAndAwait() error
}

type Graceful struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewGraceful(ctx context.Context, cancel context.CancelFunc) *Graceful {
	return &Graceful{ctx: ctx, cancel: cancel, timeout: defaultGracefulTimeout}
}

func (g *Graceful) Add(delta int) {
	g.wg.Add(delta)
}

func (g *Graceful) Done() {
	g.wg.Done()
}

func (g *Graceful) SetGracefulTimeout(d time.Duration) {
	g.timeout = d
}

// ListenCancelAndAwait blocks until an OS signal arrives or the context is
// cancelled, then cancels the app context and waits for registered
// components to finish, up to the graceful timeout.
func (g *Graceful) ListenCancelAndAwait() error {
	osSigsCh := make(chan os.Signal, 1)
	signal.Notify(osSigsCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(osSigsCh)

	select {
	case <-g.ctx.Done():
	case sig := <-osSigsCh:
		log.Info().Msgf("[shutdown] caught %v signal", sig)
	}

	g.cancel()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		g.wg.Wait()
	}()

	select {
	case <-doneCh:
		log.Info().Msg("[shutdown] gracefully stopped")
		return nil
	case <-time.After(g.timeout):
		return ErrGracefulTimeout
	}
}
