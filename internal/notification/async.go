package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hama-scanner/internal/logger"
	"hama-scanner/internal/marketdata/bus"
	"hama-scanner/internal/metrics"
	"hama-scanner/internal/model"
)

// AsyncSink decouples a slow network sink from the scan tick. Notify only
// enqueues; a background worker delivers in order. When the queue is full
// the signal is dropped for this sink and counted as a failure.
type AsyncSink struct {
	inner   model.SignalSink
	fan     *bus.FanOut[model.Signal]
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewAsyncSink starts the delivery worker. Each delivery gets timeout.
func NewAsyncSink(inner model.SignalSink, queue int, timeout time.Duration, mt *metrics.Metrics) *AsyncSink {
	if queue < 1 {
		queue = 1
	}
	a := &AsyncSink{
		inner:   inner,
		fan:     bus.New[model.Signal](queue),
		timeout: timeout,
		metrics: mt,
		log:     logger.Component("async-sink").With().Str("sink", inner.Name()).Logger(),
	}
	a.fan.OnDrop = func(int) {
		a.log.Warn().Msg("queue full, dropping signal")
		a.metrics.IncSinkFailure(inner.Name())
	}

	ch := a.fan.Subscribe()
	a.wg.Add(1)
	go a.worker(ch)
	return a
}

func (a *AsyncSink) Name() string { return a.inner.Name() }

// Notify enqueues sig and returns immediately.
func (a *AsyncSink) Notify(_ context.Context, sig model.Signal) error {
	a.fan.Publish(sig)
	return nil
}

// Close stops accepting signals and waits for the queue to drain.
func (a *AsyncSink) Close() {
	a.fan.Close()
	a.wg.Wait()
}

func (a *AsyncSink) worker(ch <-chan model.Signal) {
	defer a.wg.Done()
	for sig := range ch {
		a.deliver(sig)
	}
}

func (a *AsyncSink) deliver(sig model.Signal) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("signal_id", sig.ID).Msg("sink panicked")
			a.metrics.IncSinkFailure(a.inner.Name())
		}
	}()
	if err := a.inner.Notify(ctx, sig); err != nil {
		a.log.Warn().Err(err).Str("signal_id", sig.ID).Msg("delivery failed")
		a.metrics.IncSinkFailure(a.inner.Name())
	}
}
