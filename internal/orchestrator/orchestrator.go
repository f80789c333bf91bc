package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/streetlabs/bobwire/internal/platform"
	"github.com/streetlabs/bobwire/internal/providers"
	"github.com/streetlabs/bobwire/internal/store"
)

// dispatchTimeout bounds one full response cycle, generation included.
const dispatchTimeout = 3 * time.Minute

// Config carries orchestrator settings.
type Config struct {
	CallName     string
	OwnerID      string
	Model        string
	HistoryLimit int

	// DebounceDelay and Window override the defaults; zero keeps them.
	DebounceDelay time.Duration
	Window        time.Duration
}

// Orchestrator is the top-level event consumer: the platform adapter feeds it
// message and typing events, the control surface toggles manual mode.
type Orchestrator struct {
	store      store.Store
	continuity *Continuity
	scheduler  *Scheduler
	dispatcher *Dispatcher
	manual     atomic.Bool
}

// New wires the trigger gate, scheduler, continuity tracker and dispatcher.
func New(client platform.Client, st store.Store, gen providers.Generator, cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		continuity: NewContinuity(cfg.Window),
	}
	o.dispatcher = NewDispatcher(client, st, gen, o.continuity, &o.manual, DispatcherConfig{
		CallName:     cfg.CallName,
		OwnerID:      cfg.OwnerID,
		Model:        cfg.Model,
		HistoryLimit: cfg.HistoryLimit,
	})
	o.scheduler = NewScheduler(cfg.DebounceDelay, func(channelID string) {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		o.dispatcher.Dispatch(ctx, channelID)
	})
	return o
}

// OnMessage handles one incoming message: log it unconditionally, gate it,
// and arm the channel's debounce timer when it qualifies.
func (o *Orchestrator) OnMessage(ctx context.Context, ev MessageEvent) {
	if err := o.store.LogMessage(ctx, store.MessageRecord{
		MessageID:   ev.MessageID,
		ChannelID:   ev.ChannelID,
		CommunityID: ev.CommunityID,
		UserID:      ev.AuthorID,
		Username:    ev.AuthorName,
		Content:     ev.Content,
	}); err != nil {
		slog.Warn("message log failed", "channel_id", ev.ChannelID, "error", err)
	}

	active := o.continuity.IsActive(ev.ChannelID, time.Now())
	if !ShouldRespond(ev, o.dispatcher.config().CallName, active) {
		return
	}
	o.scheduler.Schedule(ev.ChannelID)
}

// ApplyConfig swaps the reloadable settings: call name, owner, model and
// history limit. Debounce and continuity windows stay as started.
func (o *Orchestrator) ApplyConfig(cfg Config) {
	o.dispatcher.SetConfig(DispatcherConfig{
		CallName:     cfg.CallName,
		OwnerID:      cfg.OwnerID,
		Model:        cfg.Model,
		HistoryLimit: cfg.HistoryLimit,
	})
}

// OnTyping extends the pending debounce timer while a human keeps typing.
func (o *Orchestrator) OnTyping(ev TypingEvent) {
	if ev.IsBot {
		return
	}
	o.scheduler.ExtendOnTyping(ev.ChannelID)
}

// SetManualMode pauses (true) or resumes (false) automatic responses.
// Pending timers still fire but stop short of generation while paused.
func (o *Orchestrator) SetManualMode(on bool) {
	o.manual.Store(on)
	slog.Info("manual mode changed", "enabled", on)
}

// ManualMode reports whether automatic responses are paused.
func (o *Orchestrator) ManualMode() bool {
	return o.manual.Load()
}

// Continuity exposes the tracker, used by owner commands that send messages
// outside the normal dispatch path.
func (o *Orchestrator) Continuity() *Continuity {
	return o.continuity
}

// Stop cancels all pending timers.
func (o *Orchestrator) Stop() {
	o.scheduler.Stop()
}
