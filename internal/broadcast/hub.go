package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/amdjml/WMATAPI/internal/snapshot"
)

const (
	DefaultSendTimeout = 5 * time.Second
	DefaultMaxSenders  = 64
)

var ErrHubClosed = errors.New("broadcast hub is closed")

// Subscriber is a live outbound channel. Send must return once ctx is done.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Encoder serialises a snapshot into the wire payload sent to subscribers
type Encoder func(*snapshot.Snapshot) ([]byte, error)

// SnapshotSource provides the snapshot sent to subscribers that register
// before the first broadcast
type SnapshotSource interface {
	Current() *snapshot.Snapshot
}

// Result describes one broadcast pass
type Result struct {
	Delivered int
	Pruned    int
	Bytes     int
}

// Hub fans snapshots out to registered subscribers. All changes to the
// subscriber set happen under mu; encoding and sends happen outside it.
type Hub struct {
	source      SnapshotSource
	encode      Encoder
	sendTimeout time.Duration
	maxSenders  int

	mu     sync.Mutex
	subs   map[string]Subscriber
	latest []byte
	gen    uint64
	closed bool
}

// NewHub creates a hub. A non-positive sendTimeout uses DefaultSendTimeout.
func NewHub(source SnapshotSource, encode Encoder, sendTimeout time.Duration) *Hub {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Hub{
		source:      source,
		encode:      encode,
		sendTimeout: sendTimeout,
		maxSenders:  DefaultMaxSenders,
		subs:        make(map[string]Subscriber),
	}
}

// Register sends the latest payload to sub and then admits it to future
// broadcasts. If a broadcast lands while the initial send is in flight the
// newer payload is sent before admission. A failed initial send closes sub.
func (h *Hub) Register(ctx context.Context, sub Subscriber) error {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return ErrHubClosed
		}
		payload, gen := h.latest, h.gen
		h.mu.Unlock()

		if payload == nil {
			var err error
			payload, err = h.encode(h.source.Current())
			if err != nil {
				return fmt.Errorf("encode initial snapshot: %w", err)
			}
		}

		if err := h.send(ctx, sub, payload); err != nil {
			_ = sub.Close()
			return fmt.Errorf("initial send to %s: %w", sub.ID(), err)
		}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			_ = sub.Close()
			return ErrHubClosed
		}
		if h.gen == gen {
			replaced, ok := h.subs[sub.ID()]
			h.subs[sub.ID()] = sub
			h.mu.Unlock()
			if ok && replaced != sub {
				_ = replaced.Close()
			}
			log.Debug().Str("subscriber", sub.ID()).Msg("Subscriber registered")
			return nil
		}
		h.mu.Unlock()
	}
}

// Unregister removes sub and closes it. Calling it twice is harmless.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	current, ok := h.subs[sub.ID()]
	if ok && current == sub {
		delete(h.subs, sub.ID())
	}
	h.mu.Unlock()

	if ok && current == sub {
		_ = sub.Close()
		log.Debug().Str("subscriber", sub.ID()).Msg("Subscriber unregistered")
	}
}

// Broadcast encodes snap once and sends it to every registered subscriber.
// Subscribers whose send fails are removed and closed in the same pass.
func (h *Hub) Broadcast(ctx context.Context, snap *snapshot.Snapshot) (Result, error) {
	payload, err := h.encode(snap)
	if err != nil {
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return Result{}, ErrHubClosed
	}
	h.latest = payload
	h.gen++
	targets := make([]Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	p := pool.NewWithResults[Subscriber]().WithMaxGoroutines(h.maxSenders)
	for _, sub := range targets {
		p.Go(func() Subscriber {
			if err := h.send(ctx, sub, payload); err != nil {
				log.Debug().Err(err).Str("subscriber", sub.ID()).Msg("Send failed, pruning subscriber")
				return sub
			}
			return nil
		})
	}

	var failed []Subscriber
	for _, sub := range p.Wait() {
		if sub != nil {
			failed = append(failed, sub)
		}
	}

	h.mu.Lock()
	for _, sub := range failed {
		if current, ok := h.subs[sub.ID()]; ok && current == sub {
			delete(h.subs, sub.ID())
		}
	}
	h.mu.Unlock()

	for _, sub := range failed {
		_ = sub.Close()
	}

	return Result{
		Delivered: len(targets) - len(failed),
		Pruned:    len(failed),
		Bytes:     len(payload),
	}, nil
}

// Len returns the number of registered subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber and rejects further use
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
}

// send bounds a single delivery by the hub's send timeout, even when the
// subscriber ignores its context
func (h *Hub) send(ctx context.Context, sub Subscriber, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sub.Send(ctx, payload)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
