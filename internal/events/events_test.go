package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "rig_create", RigCreate.String())
	assert.Equal(t, "spawn", Spawn.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestHub_FanOutAndDropNew(t *testing.T) {
	h := NewHub()
	fast, cancelFast := h.Subscribe("fast", 64)
	defer cancelFast()
	slow, cancelSlow := h.Subscribe("slow", 1)
	defer cancelSlow()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			h.Emit(Event{Kind: Spawn, Slot: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on slow subscriber")
	}

	assert.Len(t, fast, 50)
	require.Len(t, slow, 1)
	first := <-slow
	assert.Equal(t, 0, first.Slot, "drop-new keeps the oldest event")
	assert.Equal(t, uint64(49), h.Dropped("slow"))
	assert.Equal(t, uint64(0), h.Dropped("fast"))
	assert.Equal(t, []string{"fast", "slow"}, h.Subscribers())
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub(WithClientBuffer(4))
	ch, cancel := h.Subscribe("a", 0)
	assert.Equal(t, 4, cap(ch))

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Empty(t, h.Subscribers())

	h.Emit(Event{Kind: Spawn})
}

func TestHub_ResubscribeReplaces(t *testing.T) {
	h := NewHub()
	old, cancelOld := h.Subscribe("a", 1)
	cur, cancelCur := h.Subscribe("a", 1)
	defer cancelCur()

	_, open := <-old
	assert.False(t, open, "replaced subscription is closed")

	cancelOld()
	assert.Equal(t, []string{"a"}, h.Subscribers(), "stale cancel leaves the replacement alone")

	h.Emit(Event{Kind: RigCreate})
	assert.Len(t, cur, 1)
}

func TestHub_ConcurrentEmitAndSubscribe(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h.Emit(Event{Kind: RigReposition})
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, cancel := h.Subscribe("s", 8)
		cancel()
	}
	wg.Wait()
	h.Close()
}

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	q.Emit(Event{Kind: Spawn, Slot: 0})
	q.Emit(Event{Kind: Spawn, Slot: 1})
	q.Emit(Event{Kind: Spawn, Slot: 2})

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Slot)
	assert.Equal(t, 1, got[1].Slot)
	assert.Empty(t, q.Drain())
}

func TestTeeAndFilter(t *testing.T) {
	var all, spawns Recorder
	s := Tee(&all, Filter(&spawns, Spawn))

	s.Emit(Event{Kind: RigCreate})
	s.Emit(Event{Kind: Spawn})
	s.Emit(Event{Kind: RigDestroy})

	assert.Len(t, all.Events(), 3)
	assert.Len(t, spawns.Events(), 1)
	assert.Len(t, all.OfKind(RigDestroy), 1)

	all.Reset()
	assert.Empty(t, all.Events())
	Discard.Emit(Event{})
}

func TestParseKind(t *testing.T) {
	for k := RigCreate; k <= Spawn; k++ {
		got, ok := ParseKind(k.String())
		assert.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("kind(9)")
	assert.False(t, ok)
}
