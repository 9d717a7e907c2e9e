package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdjml/WMATAPI/internal/snapshot"
)

var t0 = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

type fakeSub struct {
	id string

	mu       sync.Mutex
	payloads []string
	failWith error
	closed   bool

	// block makes Send hang, ignoring its context, until Close
	block   bool
	release chan struct{}
}

func newFakeSub(id string) *fakeSub {
	return &fakeSub{id: id, release: make(chan struct{})}
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	block, fail := f.block, f.failWith
	f.mu.Unlock()

	if block {
		<-f.release
		return errors.New("closed")
	}
	if fail != nil {
		return fail
	}

	f.mu.Lock()
	f.payloads = append(f.payloads, string(payload))
	f.mu.Unlock()
	return nil
}

func (f *fakeSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.release)
	}
	return nil
}

func (f *fakeSub) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSub) setFail(err error) {
	f.mu.Lock()
	f.failWith = err
	f.mu.Unlock()
}

func encodeTime(s *snapshot.Snapshot) ([]byte, error) {
	if s.IsEmpty() {
		return []byte("empty"), nil
	}
	return []byte(s.GeneratedAt.Format(time.RFC3339)), nil
}

func snapAt(offset time.Duration) *snapshot.Snapshot {
	return snapshot.New(nil, nil, t0.Add(offset))
}

func label(offset time.Duration) string {
	return t0.Add(offset).Format(time.RFC3339)
}

func newTestHub() (*Hub, *snapshot.Cache) {
	cache := snapshot.NewCache()
	return NewHub(cache, encodeTime, 100*time.Millisecond), cache
}

func TestRegister_SendsCurrentSnapshotFirst(t *testing.T) {
	hub, cache := newTestHub()
	require.NoError(t, cache.Publish(snapAt(0)))

	sub := newFakeSub("a")
	require.NoError(t, hub.Register(context.Background(), sub))

	assert.Equal(t, []string{label(0)}, sub.received())
	assert.Equal(t, 1, hub.Len())
}

func TestRegister_BeforeFirstPublish(t *testing.T) {
	hub, _ := newTestHub()

	sub := newFakeSub("a")
	require.NoError(t, hub.Register(context.Background(), sub))
	assert.Equal(t, []string{"empty"}, sub.received())
}

func TestRegister_UsesLastBroadcastPayload(t *testing.T) {
	hub, _ := newTestHub()
	_, err := hub.Broadcast(context.Background(), snapAt(time.Minute))
	require.NoError(t, err)

	sub := newFakeSub("late")
	require.NoError(t, hub.Register(context.Background(), sub))
	assert.Equal(t, []string{label(time.Minute)}, sub.received())
}

func TestRegister_FailedInitialSend(t *testing.T) {
	hub, _ := newTestHub()

	sub := newFakeSub("bad")
	sub.setFail(errors.New("broken pipe"))

	err := hub.Register(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, sub.isClosed())
	assert.Equal(t, 0, hub.Len())
}

func TestBroadcast_DeliversOncePerCycle(t *testing.T) {
	hub, _ := newTestHub()
	ctx := context.Background()

	subs := []*fakeSub{newFakeSub("a"), newFakeSub("b"), newFakeSub("c")}
	for _, s := range subs {
		require.NoError(t, hub.Register(ctx, s))
	}

	for i := 1; i <= 3; i++ {
		res, err := hub.Broadcast(ctx, snapAt(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 3, res.Delivered)
		assert.Equal(t, 0, res.Pruned)
	}

	want := []string{"empty", label(time.Minute), label(2 * time.Minute), label(3 * time.Minute)}
	for _, s := range subs {
		assert.Equal(t, want, s.received(), s.id)
	}
}

func TestBroadcast_PrunesFailedSubscriber(t *testing.T) {
	hub, _ := newTestHub()
	ctx := context.Background()

	good, bad := newFakeSub("good"), newFakeSub("bad")
	require.NoError(t, hub.Register(ctx, good))
	require.NoError(t, hub.Register(ctx, bad))

	bad.setFail(errors.New("connection reset"))
	res, err := hub.Broadcast(ctx, snapAt(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, res.Pruned)
	assert.True(t, bad.isClosed())
	assert.Equal(t, 1, hub.Len())

	// next cycle: bad is no longer in the set
	bad.setFail(nil)
	res, err = hub.Broadcast(ctx, snapAt(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, []string{"empty"}, bad.received())
	assert.Len(t, good.received(), 3)
}

func TestBroadcast_SlowSubscriberIsBounded(t *testing.T) {
	hub, _ := newTestHub()
	ctx := context.Background()

	fast, slow := newFakeSub("fast"), newFakeSub("slow")
	require.NoError(t, hub.Register(ctx, fast))
	require.NoError(t, hub.Register(ctx, slow))

	slow.mu.Lock()
	slow.block = true
	slow.mu.Unlock()

	start := time.Now()
	res, err := hub.Broadcast(ctx, snapAt(time.Minute))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, res.Pruned)
	assert.True(t, slow.isClosed())
	assert.Equal(t, []string{"empty", label(time.Minute)}, fast.received())
}

func TestUnregister(t *testing.T) {
	hub, _ := newTestHub()
	ctx := context.Background()

	sub := newFakeSub("a")
	require.NoError(t, hub.Register(ctx, sub))

	hub.Unregister(sub)
	hub.Unregister(sub)
	assert.True(t, sub.isClosed())
	assert.Equal(t, 0, hub.Len())

	res, err := hub.Broadcast(ctx, snapAt(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, []string{"empty"}, sub.received())
}

func TestClose(t *testing.T) {
	hub, _ := newTestHub()
	ctx := context.Background()

	sub := newFakeSub("a")
	require.NoError(t, hub.Register(ctx, sub))

	hub.Close()
	assert.True(t, sub.isClosed())
	assert.Equal(t, 0, hub.Len())

	_, err := hub.Broadcast(ctx, snapAt(time.Minute))
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.ErrorIs(t, hub.Register(ctx, newFakeSub("b")), ErrHubClosed)
}

func TestBroadcast_EncodeError(t *testing.T) {
	hub := NewHub(snapshot.NewCache(), func(*snapshot.Snapshot) ([]byte, error) {
		return nil, errors.New("boom")
	}, 0)

	_, err := hub.Broadcast(context.Background(), snapAt(0))
	assert.Error(t, err)
	assert.Equal(t, DefaultSendTimeout, hub.sendTimeout)
}

func TestConcurrentRegisterAndBroadcast(t *testing.T) {
	hub, _ := newTestHub()
	ctx := context.Background()

	var wg sync.WaitGroup
	subs := make([]*fakeSub, 20)
	for i := range subs {
		subs[i] = newFakeSub(fmt.Sprintf("s%d", i))
		wg.Add(1)
		go func(s *fakeSub) {
			defer wg.Done()
			assert.NoError(t, hub.Register(ctx, s))
		}(subs[i])
	}

	const cycles = 10
	for i := 1; i <= cycles; i++ {
		_, err := hub.Broadcast(ctx, snapAt(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	wg.Wait()

	final := label(cycles * time.Minute)
	_, err := hub.Broadcast(ctx, snapAt((cycles+1)*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, len(subs), hub.Len())
	for _, s := range subs {
		got := s.received()
		require.NotEmpty(t, got)
		// every subscriber ends up on the same final payload and never
		// misses the broadcast after its admission
		assert.Equal(t, label((cycles+1)*time.Minute), got[len(got)-1], s.id)
		if len(got) >= 2 {
			assert.Equal(t, final, got[len(got)-2], s.id)
		}
	}
}
