package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/boostsync/internal/membership"
	"github.com/stacklok/boostsync/internal/otel"
	"github.com/stacklok/boostsync/internal/reconcile"
)

// TracerName is the instrumentation scope for event spans
const TracerName = "github.com/stacklok/boostsync/bot"

// DefaultQueueSize is the event buffer between platform handlers and the dispatcher
const DefaultQueueSize = 256

// ErrStopped is returned by Submit once the dispatcher has exited
var ErrStopped = errors.New("dispatcher stopped")

// EventReconciler is the subset of the reconciler driven by platform events
type EventReconciler interface {
	HandleBoostChange(ctx context.Context, change membership.Change) (*reconcile.Result, error)
	HandleJoin(ctx context.Context, userID string) (*reconcile.Result, error)
}

// CommandHandler runs operator commands
type CommandHandler interface {
	Handle(ctx context.Context, authorID, content string) (string, bool)
}

// Replier sends a command reply back to the channel it came from
type Replier interface {
	Reply(ctx context.Context, channelID, content string) error
}

// Dispatcher consumes events in arrival order on one goroutine, so events for
// the same user never race each other.
type Dispatcher struct {
	sourceGuildID string
	targetGuildID string

	reconciler EventReconciler
	commands   CommandHandler
	replier    Replier
	tracer     trace.Tracer

	events  chan Event
	stopped chan struct{}
}

// Option is a function that configures the dispatcher
type Option func(*Dispatcher)

// WithQueueSize sets the event buffer size
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.events = make(chan Event, n)
		}
	}
}

// WithTracerProvider opens one span per dispatched event
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(TracerName)
		}
	}
}

// NewDispatcher creates a Dispatcher. Membership changes are only acted on for
// sourceGuildID and joins only for targetGuildID.
func NewDispatcher(
	sourceGuildID, targetGuildID string,
	reconciler EventReconciler,
	commands CommandHandler,
	replier Replier,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		sourceGuildID: sourceGuildID,
		targetGuildID: targetGuildID,
		reconciler:    reconciler,
		commands:      commands,
		replier:       replier,
		events:        make(chan Event, DefaultQueueSize),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit queues an event. It blocks while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	select {
	case d.events <- ev:
		return nil
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run handles events until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("Starting event dispatcher",
		"source_guild", d.sourceGuildID,
		"target_guild", d.targetGuildID)
	defer func() {
		close(d.stopped)
		slog.Info("Event dispatcher shutting down")
	}()

	for {
		select {
		case ev := <-d.events:
			d.dispatch(ctx, ev)
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch handles one event. A panic abandons the event, not the loop.
func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	eventID := uuid.NewString()
	ctx, span := otel.StartSpan(ctx, d.tracer, "bot.dispatch "+ev.Kind(),
		trace.WithAttributes(otel.AttrEventID.String(eventID), otel.AttrEventKind.String(ev.Kind())),
	)
	defer span.End()

	logger := slog.With("event_id", eventID, "event", ev.Kind())

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			logger.Error("Event handler panicked, event dropped", "panic", fmt.Sprint(r))
		}
	}()

	var err error
	switch e := ev.(type) {
	case MemberChanged:
		err = d.handleMemberChanged(ctx, logger, e)
	case MemberJoined:
		err = d.handleMemberJoined(ctx, logger, e)
	case Command:
		err = d.handleCommand(ctx, logger, e)
	default:
		logger.Warn("Unhandled event type", "type", fmt.Sprintf("%T", ev))
	}
	otel.RecordError(span, err)
}

func (d *Dispatcher) handleMemberChanged(ctx context.Context, logger *slog.Logger, e MemberChanged) error {
	if e.Change.GuildID != d.sourceGuildID {
		return nil
	}
	logger.Debug("Handling member update", "user_id", e.Change.UserID)
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrGuildID.String(e.Change.GuildID), otel.AttrUserID.String(e.Change.UserID))

	result, err := d.reconciler.HandleBoostChange(ctx, e.Change)
	if err != nil {
		logger.Error("Boost change reconciliation failed", "user_id", e.Change.UserID, "error", err)
		return err
	}
	recordMutations(ctx, result)
	return nil
}

func (d *Dispatcher) handleMemberJoined(ctx context.Context, logger *slog.Logger, e MemberJoined) error {
	if e.GuildID != d.targetGuildID {
		return nil
	}
	logger.Info("Member joined target guild", "user_id", e.UserID)
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrGuildID.String(e.GuildID), otel.AttrUserID.String(e.UserID))

	result, err := d.reconciler.HandleJoin(ctx, e.UserID)
	if err != nil {
		logger.Error("Join reconciliation failed", "user_id", e.UserID, "error", err)
		return err
	}
	recordMutations(ctx, result)
	return nil
}

func (d *Dispatcher) handleCommand(ctx context.Context, logger *slog.Logger, e Command) error {
	reply, ok := d.commands.Handle(ctx, e.AuthorID, e.Content)
	if !ok || reply == "" {
		return nil
	}

	if err := d.replier.Reply(ctx, e.ChannelID, reply); err != nil {
		logger.Error("Failed to send command reply", "channel_id", e.ChannelID, "error", err)
		return err
	}
	return nil
}

func recordMutations(ctx context.Context, result *reconcile.Result) {
	if result == nil {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrMutations.Int(result.Mutations()))
}
