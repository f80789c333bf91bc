package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/streetlabs/bobwire/internal/directive"
	"github.com/streetlabs/bobwire/internal/platform"
	"github.com/streetlabs/bobwire/internal/providers"
	"github.com/streetlabs/bobwire/internal/resolve"
	"github.com/streetlabs/bobwire/internal/store"
)

// DefaultHistoryLimit caps the channel history window fetched per dispatch.
const DefaultHistoryLimit = 50

// crossChannelHistoryLimit caps how much of the author's own logged history
// is folded into the generation context.
const crossChannelHistoryLimit = 10

// DispatcherConfig carries the knobs the dispatch pipeline needs.
type DispatcherConfig struct {
	CallName     string
	OwnerID      string // always resolved to the top tier
	Model        string // generator model override, empty for default
	HistoryLimit int
}

// Dispatcher runs the response pipeline when the scheduler fires: fetch
// history, resolve the author's tier, generate, route any embedded directive,
// send. Failures are logged and abort the cycle; the next triggering event
// retries naturally, so nothing here retries on its own.
type Dispatcher struct {
	platform   platform.Client
	store      store.Store
	generator  providers.Generator
	continuity *Continuity
	manual     *atomic.Bool

	mu  sync.RWMutex // guards cfg for hot reload
	cfg DispatcherConfig
}

// NewDispatcher wires the pipeline. manual is shared with the control
// surface; while set, dispatch stops short of calling the generator.
func NewDispatcher(client platform.Client, st store.Store, gen providers.Generator, cont *Continuity, manual *atomic.Bool, cfg DispatcherConfig) *Dispatcher {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Dispatcher{
		platform:   client,
		store:      st,
		generator:  gen,
		continuity: cont,
		manual:     manual,
		cfg:        cfg,
	}
}

// SetConfig swaps the pipeline knobs, used by config hot reload. In-flight
// dispatches keep the snapshot they started with.
func (d *Dispatcher) SetConfig(cfg DispatcherConfig) {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Dispatcher) config() DispatcherConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Dispatch runs one response cycle for a channel. The scheduler has already
// cleared its timer slot, so anything arriving while we run starts a fresh
// cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, channelID string) {
	cfg := d.config()
	log := slog.With("run_id", uuid.NewString(), "channel_id", channelID)

	history, err := d.platform.History(ctx, channelID, cfg.HistoryLimit)
	if err != nil {
		log.Warn("history fetch failed", "error", err)
		return
	}

	// History arrives newest first; the first non-agent entry is the most
	// recent human author.
	var author *platform.Message
	for i := range history {
		if !history[i].Self {
			author = &history[i]
			break
		}
	}
	if author == nil {
		log.Debug("no non-agent author in history window")
		return
	}

	tier := d.resolveTier(ctx, author.AuthorID, cfg.OwnerID, log)

	if d.manual.Load() {
		log.Debug("manual mode active, skipping generation")
		return
	}

	system := d.buildSystem(ctx, channelID, author, tier, cfg.CallName)
	turns := buildTurns(history)

	out, err := d.generator.Generate(ctx, providers.Request{
		System: system,
		Turns:  turns,
		Model:  cfg.Model,
	})
	if err != nil {
		log.Warn("generation failed", "backend", d.generator.Name(), "error", err)
		return
	}

	text := strings.TrimSpace(out)
	if text == "" || text == providers.Silence {
		log.Debug("backend chose silence")
		return
	}

	dir, remainder := directive.Parse(text)
	if dir != nil {
		remainder = d.routeDirective(ctx, channelID, author.ID, dir, remainder, log)
	}

	if remainder == "" {
		return
	}
	if err := d.platform.Send(ctx, channelID, remainder); err != nil {
		log.Warn("send failed", "error", err)
		return
	}
	d.continuity.Touch(channelID)
	log.Info("reply sent", "length", len(remainder), "tier", tier)
}

// routeDirective resolves and delivers a [[TX: ...]] payload. It returns the
// remainder text the caller should still send to the origin channel, which is
// emptied when the directive resolved to that same channel. A successful
// delivery acks the triggering message with a checkmark reaction.
func (d *Dispatcher) routeDirective(ctx context.Context, originChannelID, triggerMessageID string, dir *directive.Directive, remainder string, log *slog.Logger) string {
	currentCommunityID := ""
	if community, ok := d.platform.CommunityOf(originChannelID); ok {
		currentCommunityID = community.ID
	}

	dest, err := resolve.Resolve(d.platform, dir.Community, dir.Channel, currentCommunityID)
	if err != nil {
		log.Debug("directive resolution failed", "community", dir.Community, "channel", dir.Channel, "error", err)
		note := fmt.Sprintf("(whispering) tried to deliver that somewhere else, but %s", err)
		if sendErr := d.platform.Send(ctx, originChannelID, note); sendErr != nil {
			log.Warn("failure note send failed", "error", sendErr)
		}
		return remainder
	}

	// Same destination as the origin: the payload already covers it, so the
	// leftover text would be a duplicate.
	if dest.ChannelID == originChannelID {
		remainder = ""
	}

	if err := d.platform.Send(ctx, dest.ChannelID, dir.Payload); err != nil {
		log.Warn("directive send failed", "dest_channel_id", dest.ChannelID, "error", err)
		return remainder
	}
	d.continuity.Touch(dest.ChannelID)
	log.Info("directive delivered", "dest_channel_id", dest.ChannelID, "length", len(dir.Payload))

	if err := d.platform.React(ctx, originChannelID, triggerMessageID, "✅"); err != nil {
		log.Debug("directive ack reaction failed", "error", err)
	}

	return remainder
}

func (d *Dispatcher) resolveTier(ctx context.Context, userID, ownerID string, log *slog.Logger) int {
	if ownerID != "" && userID == ownerID {
		return 1
	}
	tier, err := d.store.GetTier(ctx, userID)
	if err != nil {
		log.Warn("tier lookup failed", "user_id", userID, "error", err)
		return store.DefaultTier
	}
	return tier
}

// buildSystem assembles the system prompt: persona, tier tone, user memory,
// the author's cross-channel history, the visible directory and the standing
// instructions for silence and routing.
func (d *Dispatcher) buildSystem(ctx context.Context, channelID string, author *platform.Message, tier int, callName string) string {
	var b strings.Builder

	community, inCommunity := d.platform.CommunityOf(channelID)

	persona := fmt.Sprintf("You are %s, a regular in this chat. Keep replies short and conversational.", callName)
	if inCommunity {
		if p, err := d.store.Persona(ctx, community.ID); err == nil && p.Description != "" {
			persona = p.Description
			if p.Tags != "" {
				persona += "\nTone tags: " + p.Tags
			}
		}
	}
	b.WriteString(persona)
	b.WriteString("\n\n")

	b.WriteString(tierInstruction(tier))
	b.WriteString("\n")

	if memory, err := d.store.Memory(ctx, author.AuthorID); err == nil && memory != "" {
		fmt.Fprintf(&b, "\nWhat you remember about %s:\n%s\n", author.AuthorName, memory)
	}

	if past, err := d.store.RecentMessagesByUser(ctx, author.AuthorID, crossChannelHistoryLimit); err == nil && len(past) > 0 {
		fmt.Fprintf(&b, "\nRecent messages from %s across all channels (newest first):\n", author.AuthorName)
		for _, rec := range past {
			fmt.Fprintf(&b, "- %s\n", rec.Content)
		}
	}

	b.WriteString("\nPlaces you can see:\n")
	for _, c := range d.platform.Communities() {
		fmt.Fprintf(&b, "- %s (id %s)\n", c.Name, c.ID)
		for _, ch := range d.platform.Channels(c.ID) {
			if ch.TextCapable {
				fmt.Fprintf(&b, "  - #%s (id %s)\n", ch.Name, ch.ID)
			}
		}
	}
	channelName := ""
	if ch, ok := d.platform.ChannelInfo(channelID); ok {
		channelName = ch.Name
	}
	switch {
	case inCommunity && channelName != "":
		fmt.Fprintf(&b, "You are currently in #%s of %q.\n", channelName, community.Name)
	case inCommunity:
		fmt.Fprintf(&b, "You are currently in %q.\n", community.Name)
	default:
		b.WriteString("You are currently in a direct message.\n")
	}

	fmt.Fprintf(&b, "\nIf the conversation does not need a reply from you, respond with exactly %s and nothing else.\n", providers.Silence)
	b.WriteString("To deliver a message to another place, embed exactly one directive of the form " +
		"[[TX: <community name or id> | <channel name or id> | <message>]] in your reply.\n")

	return b.String()
}

func tierInstruction(tier int) string {
	switch tier {
	case 1:
		return "The person you are answering has top standing here. Be warm, attentive and genuinely helpful."
	case 3:
		return "The person you are answering has low standing here. Keep it curt and give them nothing extra."
	default:
		return "Treat the person you are answering casually, like anyone else in the room."
	}
}

// buildTurns converts a newest-first history window into chronological
// generation turns.
func buildTurns(history []platform.Message) []providers.Turn {
	turns := make([]providers.Turn, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Self {
			turns = append(turns, providers.Turn{Role: "assistant", Content: m.Content})
		} else {
			turns = append(turns, providers.Turn{Role: "user", Author: m.AuthorName, Content: m.Content})
		}
	}
	return turns
}
