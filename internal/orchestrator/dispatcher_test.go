package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/streetlabs/bobwire/internal/platform"
	"github.com/streetlabs/bobwire/internal/providers"
	"github.com/streetlabs/bobwire/internal/store"
)

// fakeClient implements platform.Client in memory.
type fakeClient struct {
	mu          sync.Mutex
	history     []platform.Message // newest first
	sent        map[string][]string
	reactions   []fakeReaction
	communities []platform.Community
	channels    map[string][]platform.Channel
	channelHome map[string]string // channelID -> communityID
}

type fakeReaction struct {
	channelID string
	messageID string
	emoji     string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		sent: make(map[string][]string),
		communities: []platform.Community{
			{ID: "g1", Name: "Test Server"},
		},
		channels: map[string][]platform.Channel{
			"g1": {
				{ID: "X", CommunityID: "g1", Name: "origin", TextCapable: true},
				{ID: "Y", CommunityID: "g1", Name: "general", TextCapable: true},
			},
		},
		channelHome: map[string]string{"X": "g1", "Y": "g1"},
	}
}

func (f *fakeClient) History(_ context.Context, _ string, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeClient) Send(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	f.sent[channelID] = append(f.sent[channelID], text)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) SendDM(_ context.Context, userID, text string) error {
	return f.Send(context.Background(), "dm:"+userID, text)
}

func (f *fakeClient) React(_ context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	f.reactions = append(f.reactions, fakeReaction{channelID, messageID, emoji})
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) DeleteMessage(_ context.Context, _, _ string) error { return nil }
func (f *fakeClient) Communities() []platform.Community                  { return f.communities }
func (f *fakeClient) Channels(communityID string) []platform.Channel     { return f.channels[communityID] }

func (f *fakeClient) CommunityOf(channelID string) (platform.Community, bool) {
	gid, ok := f.channelHome[channelID]
	if !ok {
		return platform.Community{}, false
	}
	for _, c := range f.communities {
		if c.ID == gid {
			return c, true
		}
	}
	return platform.Community{}, false
}

func (f *fakeClient) ChannelInfo(channelID string) (platform.Channel, bool) {
	for _, chans := range f.channels {
		for _, ch := range chans {
			if ch.ID == channelID {
				return ch, true
			}
		}
	}
	return platform.Channel{}, false
}

func (f *fakeClient) sentTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[channelID]...)
}

func (f *fakeClient) allReactions() []fakeReaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeReaction(nil), f.reactions...)
}

// fakeStore implements store.Store in memory.
type fakeStore struct {
	mu       sync.Mutex
	tiers    map[string]int
	logged   []store.MessageRecord
	memories map[string]string
	personas map[string]store.Persona
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tiers:    make(map[string]int),
		memories: make(map[string]string),
		personas: make(map[string]store.Persona),
	}
}

func (f *fakeStore) GetTier(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tiers[userID]; ok {
		return t, nil
	}
	return store.DefaultTier, nil
}

func (f *fakeStore) SetTier(_ context.Context, userID string, tier int) error {
	f.mu.Lock()
	f.tiers[userID] = tier
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) LogMessage(_ context.Context, rec store.MessageRecord) error {
	f.mu.Lock()
	f.logged = append(f.logged, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) RecentMessages(_ context.Context, _ string, _ int) ([]store.MessageRecord, error) {
	return nil, nil
}

func (f *fakeStore) RecentMessagesByUser(_ context.Context, _ string, _ int) ([]store.MessageRecord, error) {
	return nil, nil
}

func (f *fakeStore) Memory(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memories[userID], nil
}

func (f *fakeStore) SetMemory(_ context.Context, userID, memory string) error {
	f.mu.Lock()
	f.memories[userID] = memory
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Persona(_ context.Context, communityID string) (store.Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.personas[communityID], nil
}

func (f *fakeStore) SetPersona(_ context.Context, p store.Persona) error {
	f.mu.Lock()
	f.personas[p.CommunityID] = p
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Close() error { return nil }

// fakeGenerator returns a canned reply and records the request.
type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []providers.Request
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(_ context.Context, req providers.Request) (string, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	return g.reply, g.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}

func (g *fakeGenerator) lastRequest() providers.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}

func newTestDispatcher(client *fakeClient, gen *fakeGenerator) (*Dispatcher, *Continuity, *atomic.Bool) {
	cont := NewContinuity(0)
	var manual atomic.Bool
	d := NewDispatcher(client, newFakeStore(), gen, cont, &manual, DispatcherConfig{
		CallName: "bob",
		OwnerID:  "owner-1",
	})
	return d, cont, &manual
}

func TestDispatchSendsReply(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "bob you there"},
	}
	gen := &fakeGenerator{reply: "yeah, what's up"}
	d, cont, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	sent := client.sentTo("X")
	if len(sent) != 1 || sent[0] != "yeah, what's up" {
		t.Fatalf("sent = %v", sent)
	}
	if _, ok := cont.LastResponse("X"); !ok {
		t.Error("continuity not touched after reply")
	}
}

func TestDispatchSilenceSentinel(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "whatever"},
	}
	gen := &fakeGenerator{reply: "  " + providers.Silence + "  "}
	d, cont, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	if sent := client.sentTo("X"); len(sent) != 0 {
		t.Fatalf("silence sentinel produced output: %v", sent)
	}
	if _, ok := cont.LastResponse("X"); ok {
		t.Error("continuity touched despite silence")
	}
}

func TestDispatchManualModeSkipsGeneration(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "hi"},
	}
	gen := &fakeGenerator{reply: "should not appear"}
	d, _, manual := newTestDispatcher(client, gen)
	manual.Store(true)

	d.Dispatch(context.Background(), "X")

	if gen.calls() != 0 {
		t.Error("generator called in manual mode")
	}
	if sent := client.sentTo("X"); len(sent) != 0 {
		t.Errorf("sent = %v", sent)
	}
}

func TestDispatchNoHumanAuthor(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "self", Content: "earlier reply", Self: true},
	}
	gen := &fakeGenerator{reply: "should not appear"}
	d, _, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	if gen.calls() != 0 {
		t.Error("generator called with no human author in window")
	}
}

func TestDispatchDirectiveToOtherChannel(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "tell general hey"},
	}
	gen := &fakeGenerator{reply: "ok [[TX: Test Server | general | hey]]"}
	d, cont, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	if sent := client.sentTo("Y"); len(sent) != 1 || sent[0] != "hey" {
		t.Fatalf("payload to Y = %v", sent)
	}
	if sent := client.sentTo("X"); len(sent) != 1 || sent[0] != "ok" {
		t.Fatalf("remainder to X = %v", sent)
	}
	if _, ok := cont.LastResponse("Y"); !ok {
		t.Error("continuity not touched for directive destination")
	}

	reactions := client.allReactions()
	if len(reactions) != 1 {
		t.Fatalf("reactions = %v, want ack on the triggering message", reactions)
	}
	if r := reactions[0]; r.channelID != "X" || r.messageID != "m1" || r.emoji != "✅" {
		t.Errorf("reaction = %+v", r)
	}
}

func TestDispatchDirectiveSameChannelSuppressesRemainder(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "say it here"},
	}
	gen := &fakeGenerator{reply: "ok [[TX: here | origin | the real message]]"}
	d, _, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	sent := client.sentTo("X")
	if len(sent) != 1 || sent[0] != "the real message" {
		t.Fatalf("sent = %v, want only the payload once", sent)
	}
}

func TestDispatchDirectiveResolutionFailure(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "tell nowhere hi"},
	}
	gen := &fakeGenerator{reply: "sure [[TX: Atlantis | general | hi]]"}
	d, _, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	sent := client.sentTo("X")
	if len(sent) != 2 {
		t.Fatalf("sent = %v, want failure note plus remainder", sent)
	}
	if !strings.HasPrefix(sent[0], "(whispering)") {
		t.Errorf("first send = %q, want whispered failure note", sent[0])
	}
	if sent[1] != "sure" {
		t.Errorf("second send = %q, want remainder", sent[1])
	}
	if sent := client.sentTo("Y"); len(sent) != 0 {
		t.Errorf("unresolved directive delivered payload: %v", sent)
	}
	if reactions := client.allReactions(); len(reactions) != 0 {
		t.Errorf("failed directive still acked: %v", reactions)
	}
}

func TestDispatchOwnerForcedTopTier(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "owner-1", AuthorName: "boss", Content: "bob status"},
	}
	gen := &fakeGenerator{reply: "all good"}
	cont := NewContinuity(0)
	var manual atomic.Bool
	st := newFakeStore()
	st.tiers["owner-1"] = 3 // stored value must be overridden
	d := NewDispatcher(client, st, gen, cont, &manual, DispatcherConfig{CallName: "bob", OwnerID: "owner-1"})

	d.Dispatch(context.Background(), "X")

	if gen.calls() != 1 {
		t.Fatal("generator not called")
	}
	system := gen.lastRequest().System
	if !strings.Contains(system, tierInstruction(1)) {
		t.Error("owner not treated as top tier in system prompt")
	}
}

func TestDispatchSystemNamesCurrentLocation(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "bob where are we"},
	}
	gen := &fakeGenerator{reply: "right here"}
	d, _, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	system := gen.lastRequest().System
	if !strings.Contains(system, `#origin of "Test Server"`) {
		t.Errorf("system prompt does not name the current channel and community:\n%s", system)
	}
}

func TestDispatchTurnsChronological(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m3", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "third"},
		{ID: "m2", ChannelID: "X", AuthorID: "self", Content: "second", Self: true},
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "first"},
	}
	gen := &fakeGenerator{reply: "ok"}
	d, _, _ := newTestDispatcher(client, gen)

	d.Dispatch(context.Background(), "X")

	turns := gen.lastRequest().Turns
	if len(turns) != 3 {
		t.Fatalf("got %d turns", len(turns))
	}
	if turns[0].Content != "first" || turns[1].Content != "second" || turns[2].Content != "third" {
		t.Errorf("turns out of order: %+v", turns)
	}
	if turns[1].Role != "assistant" {
		t.Errorf("agent turn role = %q", turns[1].Role)
	}
}
