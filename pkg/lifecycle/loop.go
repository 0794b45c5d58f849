package lifecycle

import (
	"context"
	"time"

	"aurora/pkg/messages"
	"aurora/pkg/pixel"
)

const minInterval = 100 * time.Microsecond

// Renderer runs one render tick. *Coordinator satisfies it.
type Renderer interface {
	RenderOnce() bool
}

// Loop drives the renderer until its context is cancelled, flushing the
// sink after each pass that completes.
type Loop struct {
	renderer Renderer
	sink     pixel.Sink
	interval time.Duration
	messages *messages.Log
	logger   Logger
}

func NewLoop(renderer Renderer, sink pixel.Sink, interval time.Duration,
	msgs *messages.Log, logger Logger) *Loop {
	if interval < minInterval {
		interval = minInterval
	}
	return &Loop{
		renderer: renderer,
		sink:     sink,
		interval: interval,
		messages: msgs,
		logger:   logger,
	}
}

// Run blocks until ctx is done and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("render loop started", "interval", l.interval)
	defer l.logger.Info("render loop stopped")

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			l.Tick()
			timer.Reset(l.interval)
		}
	}
}

// Tick runs a single iteration of the loop.
func (l *Loop) Tick() {
	if !l.renderer.RenderOnce() {
		return
	}
	if err := l.sink.Flush(); err != nil {
		l.messages.Addf("Could not flush pixels: %v", err)
		l.logger.Warn("flush failed", "error", err)
	}
}
