package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/stacklok/boostsync/internal/membership"
	"github.com/stacklok/boostsync/internal/reconcile"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	panic bool
	err   error
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) HandleBoostChange(_ context.Context, change membership.Change) (*reconcile.Result, error) {
	if r.panic {
		panic("reconciler exploded")
	}
	r.record("change:" + change.UserID)
	return &reconcile.Result{UserID: change.UserID}, r.err
}

func (r *recorder) HandleJoin(_ context.Context, userID string) (*reconcile.Result, error) {
	r.record("join:" + userID)
	return &reconcile.Result{UserID: userID}, r.err
}

func (r *recorder) Handle(_ context.Context, authorID, content string) (string, bool) {
	r.record("command:" + authorID + ":" + content)
	if content == "ignored" {
		return "", false
	}
	return "ok " + content, true
}

func (r *recorder) Reply(_ context.Context, channelID, content string) error {
	r.record("reply:" + channelID + ":" + content)
	return nil
}

func runDispatcher(t *testing.T, d *Dispatcher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()
	t.Cleanup(cancel)
	return cancel, errCh
}

func TestDispatcher_RoutesEventsInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher("source", "target", rec, rec, rec)
	cancel, errCh := runDispatcher(t, d)

	ctx := context.Background()
	events := []Event{
		MemberChanged{Change: membership.Change{GuildID: "source", UserID: "u1"}},
		MemberChanged{Change: membership.Change{GuildID: "target", UserID: "u1"}},
		MemberJoined{GuildID: "target", UserID: "u2"},
		MemberJoined{GuildID: "source", UserID: "u3"},
		Command{AuthorID: "op", ChannelID: "dm", Content: "vanitystatus"},
		Command{AuthorID: "op", ChannelID: "dm", Content: "ignored"},
		MemberChanged{Change: membership.Change{GuildID: "source", UserID: "u1"}},
	}
	for _, ev := range events {
		require.NoError(t, d.Submit(ctx, ev))
	}

	want := []string{
		"change:u1",
		"join:u2",
		"command:op:vanitystatus",
		"reply:dm:ok vanitystatus",
		"command:op:ignored",
		"change:u1",
	}
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == len(want)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.snapshot())

	cancel()
	require.NoError(t, <-errCh)
}

func TestDispatcher_ErrorsDoNotStopLoop(t *testing.T) {
	t.Parallel()

	rec := &recorder{err: errors.New("missing permissions")}
	d := NewDispatcher("source", "target", rec, rec, rec)
	runDispatcher(t, d)

	ctx := context.Background()
	require.NoError(t, d.Submit(ctx, MemberJoined{GuildID: "target", UserID: "a"}))
	require.NoError(t, d.Submit(ctx, MemberJoined{GuildID: "target", UserID: "b"}))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	rec := &recorder{panic: true}
	d := NewDispatcher("source", "target", rec, rec, rec)
	runDispatcher(t, d)

	ctx := context.Background()
	require.NoError(t, d.Submit(ctx, MemberChanged{Change: membership.Change{GuildID: "source", UserID: "u1"}}))
	require.NoError(t, d.Submit(ctx, MemberJoined{GuildID: "target", UserID: "u2"}))

	require.Eventually(t, func() bool {
		calls := rec.snapshot()
		return len(calls) == 1 && calls[0] == "join:u2"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher("source", "target", rec, rec, rec, WithQueueSize(1))
	cancel, errCh := runDispatcher(t, d)
	cancel()
	require.NoError(t, <-errCh)

	// Once the single buffer slot is taken the only ready case is the stopped channel
	var err error
	for i := 0; i < 2 && err == nil; i++ {
		err = d.Submit(context.Background(), MemberJoined{GuildID: "target", UserID: "x"})
	}
	require.ErrorIs(t, err, ErrStopped)
}

func TestDispatcher_SubmitHonoursContext(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher("source", "target", rec, rec, rec, WithQueueSize(1))

	require.NoError(t, d.Submit(context.Background(), MemberJoined{GuildID: "target", UserID: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Submit(ctx, MemberJoined{GuildID: "target", UserID: "y"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_TracesEvents(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := &recorder{err: errors.New("missing permissions")}
	d := NewDispatcher("source", "target", rec, rec, rec, WithTracerProvider(tp))
	runDispatcher(t, d)

	require.NoError(t, d.Submit(context.Background(), MemberJoined{GuildID: "target", UserID: "u9"}))

	require.Eventually(t, func() bool {
		return len(exporter.GetSpans()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	span := exporter.GetSpans()[0]
	assert.Equal(t, "bot.dispatch member-joined", span.Name)
	assert.Equal(t, codes.Error, span.Status.Code)

	attrs := map[string]string{}
	for _, attr := range span.Attributes {
		attrs[string(attr.Key)] = attr.Value.Emit()
	}
	assert.Equal(t, "u9", attrs["user.id"])
	assert.Equal(t, "member-joined", attrs["event.kind"])
	assert.NotEmpty(t, attrs["event.id"])
}
