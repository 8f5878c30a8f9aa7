package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-ums/pkg/access"
	"github.com/tendant/simple-ums/pkg/store"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (s *recordingSink) Record(ctx context.Context, event Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatchRecordsEvents(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, Options{})

	for i := 0; i < 10; i++ {
		assert.True(t, d.Dispatch(Event{Type: CreateApp, EntityID: "1"}))
	}
	require.NoError(t, d.Shutdown(time.Second))

	assert.Equal(t, 10, sink.count())
	assert.Equal(t, float64(10), testutil.ToFloat64(d.events.WithLabelValues(ResultRecorded)))
}

func TestDispatchNeverBlocks(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(sink, Options{Workers: 1, QueueSize: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			d.Dispatch(Event{Type: UpdateUser})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	assert.GreaterOrEqual(t, testutil.ToFloat64(d.events.WithLabelValues(ResultDropped)), float64(18))

	close(sink.block)
	require.NoError(t, d.Shutdown(time.Second))
}

func TestDispatchSwallowsFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	d := NewDispatcher(sink, Options{LogFailures: true})

	assert.True(t, d.Dispatch(Event{Type: HardDeleteUser}))
	require.NoError(t, d.Shutdown(time.Second))

	assert.Equal(t, float64(1), testutil.ToFloat64(d.events.WithLabelValues(ResultFailed)))
}

func TestGoRunsTasksAndRecoversPanics(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, Options{Workers: 1})

	var ran bool
	assert.True(t, d.Go("ok", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		ran = hasDeadline
		return nil
	}))
	assert.True(t, d.Go("panics", func(ctx context.Context) error {
		panic("boom")
	}))
	require.NoError(t, d.Shutdown(time.Second))

	assert.True(t, ran)
	assert.Equal(t, float64(1), testutil.ToFloat64(d.tasks.WithLabelValues(ResultRecorded)))
	assert.Equal(t, float64(1), testutil.ToFloat64(d.tasks.WithLabelValues(ResultFailed)))
}

func TestDispatchAfterShutdownIsDropped(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, Options{})
	require.NoError(t, d.Shutdown(time.Second))
	require.NoError(t, d.Shutdown(time.Second))

	assert.False(t, d.Dispatch(Event{Type: CreateRole}))
	assert.False(t, d.Go("late", func(ctx context.Context) error { return nil }))
}

func TestNewEventCapturesCaller(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/roles/7/hard", nil)
	r = r.WithContext(access.WithCaller(r.Context(), &access.Caller{UserID: 3, Email: "admin@example.com"}))

	event := NewEvent(r, HardDeleteRole, EntityRole, 7, 2).WithMetadata("name", "READER")
	assert.Equal(t, "7", event.EntityID)
	assert.Equal(t, int64(3), event.ActorID)
	assert.Equal(t, "admin@example.com", event.ActorEmail)
	assert.Equal(t, http.MethodDelete, event.Method)
	assert.NotEmpty(t, event.RequestID)
	assert.Equal(t, "READER", event.Metadata["name"])
}

func TestStoreSinkWritesAuditLog(t *testing.T) {
	s := store.NewInMemoryStore()
	sink := NewStoreSink(s)

	event := Event{Type: CreateApp, EntityType: EntityApp, EntityID: "1", AppID: 1, RequestID: "req-1"}
	require.NoError(t, sink.Record(context.Background(), event))

	entries := s.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "CREATE_APP", entries[0].EventType)
	assert.Equal(t, "req-1", entries[0].Metadata["request_id"])
}
