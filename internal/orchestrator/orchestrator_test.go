package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/streetlabs/bobwire/internal/platform"
)

func TestOnMessageAlwaysLogs(t *testing.T) {
	client := newFakeClient()
	st := newFakeStore()
	gen := &fakeGenerator{reply: "hi"}
	o := New(client, st, gen, Config{CallName: "bob", DebounceDelay: 20 * time.Millisecond})
	defer o.Stop()

	// Not a trigger: no mention, no call name, idle channel.
	o.OnMessage(context.Background(), MessageEvent{
		MessageID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice",
		Content: "just chatting",
	})

	st.mu.Lock()
	logged := len(st.logged)
	st.mu.Unlock()
	if logged != 1 {
		t.Fatalf("logged %d messages, want 1", logged)
	}

	time.Sleep(80 * time.Millisecond)
	if gen.calls() != 0 {
		t.Error("non-triggering message reached the generator")
	}
}

func TestBurstProducesSingleReply(t *testing.T) {
	client := newFakeClient()
	st := newFakeStore()
	gen := &fakeGenerator{reply: "one answer"}
	o := New(client, st, gen, Config{CallName: "bob", DebounceDelay: 30 * time.Millisecond})
	defer o.Stop()

	ctx := context.Background()
	for i, content := range []string{"bob?", "bob you there", "hello bob"} {
		client.mu.Lock()
		client.history = append([]platform.Message{{
			ID: string(rune('a' + i)), ChannelID: "X",
			AuthorID: "u1", AuthorName: "alice", Content: content,
		}}, client.history...)
		client.mu.Unlock()

		o.OnMessage(ctx, MessageEvent{
			MessageID: string(rune('a' + i)), ChannelID: "X",
			AuthorID: "u1", AuthorName: "alice", Content: content,
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if gen.calls() != 1 {
		t.Fatalf("generator called %d times, want 1", gen.calls())
	}
	// The single generation saw the full burst, i.e. history was fetched
	// after the last message.
	turns := gen.lastRequest().Turns
	if len(turns) != 3 || turns[2].Content != "hello bob" {
		t.Errorf("turns = %+v, want all three burst messages", turns)
	}
	if sent := client.sentTo("X"); len(sent) != 1 {
		t.Errorf("sent = %v, want exactly one reply", sent)
	}
}

func TestOnTypingFromBotIgnored(t *testing.T) {
	client := newFakeClient()
	client.history = []platform.Message{
		{ID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "bob hi"},
	}
	gen := &fakeGenerator{reply: "hi"}
	o := New(client, newFakeStore(), gen, Config{CallName: "bob", DebounceDelay: 40 * time.Millisecond})
	defer o.Stop()

	o.OnMessage(context.Background(), MessageEvent{
		MessageID: "m1", ChannelID: "X", AuthorID: "u1", AuthorName: "alice", Content: "bob hi",
	})
	time.Sleep(20 * time.Millisecond)

	// A bot typing must not push the fire time out.
	o.OnTyping(TypingEvent{ChannelID: "X", UserID: "other-bot", IsBot: true})

	time.Sleep(35 * time.Millisecond)
	if gen.calls() != 1 {
		t.Fatalf("generator called %d times, want 1 (bot typing must not extend)", gen.calls())
	}
}

func TestManualModeToggle(t *testing.T) {
	client := newFakeClient()
	o := New(client, newFakeStore(), &fakeGenerator{}, Config{CallName: "bob"})
	defer o.Stop()

	if o.ManualMode() {
		t.Error("manual mode should start off")
	}
	o.SetManualMode(true)
	if !o.ManualMode() {
		t.Error("manual mode not set")
	}
	o.SetManualMode(false)
	if o.ManualMode() {
		t.Error("manual mode not cleared")
	}
}
