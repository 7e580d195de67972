// Package bus broadcasts values from one producer to many buffered
// subscribers without letting a slow subscriber block the producer.
package bus

import (
	"context"
	"sync"
)

// FanOut broadcasts values to N subscriber channels. If a subscriber's
// buffer is full the value is dropped for that subscriber only.
type FanOut[T any] struct {
	mu      sync.RWMutex
	outputs []chan T
	bufSize int
	closed  bool

	// OnDrop is called when a value is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New[T any](outputBufferSize int) *FanOut[T] {
	return &FanOut[T]{bufSize: outputBufferSize}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut[T]) Subscribe() <-chan T {
	ch := make(chan T, f.bufSize)
	f.mu.Lock()
	if f.closed {
		close(ch)
	} else {
		f.outputs = append(f.outputs, ch)
	}
	f.mu.Unlock()
	return ch
}

// Publish offers v to every subscriber. Returns the number of drops.
func (f *FanOut[T]) Publish(v T) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return 0
	}
	drops := 0
	for i, ch := range f.outputs {
		select {
		case ch <- v:
		default:
			drops++
			if f.OnDrop != nil {
				f.OnDrop(i)
			}
		}
	}
	return drops
}

// Run publishes everything from input until ctx is cancelled or input is
// closed, then closes all subscriber channels.
func (f *FanOut[T]) Run(ctx context.Context, input <-chan T) {
	defer f.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			f.Publish(v)
		}
	}
}

// Close closes every subscriber channel. Further publishes are ignored.
func (f *FanOut[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.outputs {
		close(ch)
	}
}

// ChannelStat is the (length, capacity) of one subscriber channel.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats reports subscriber saturation.
func (f *FanOut[T]) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
