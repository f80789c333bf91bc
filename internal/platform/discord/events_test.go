package discord

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/streetlabs/bobwire/internal/orchestrator"
)

const testBotID = "bot-123"

func msg(author *discordgo.User, content, guildID string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "chan-1",
		GuildID:   guildID,
		Author:    author,
		Content:   content,
	}}
}

func TestTranslateMessage(t *testing.T) {
	alice := &discordgo.User{ID: "u1", Username: "alice"}

	t.Run("plain guild message", func(t *testing.T) {
		ev := translateMessage(msg(alice, "hello", "g1"), testBotID)
		if ev.Self || ev.IsDM || ev.MentionsAgent || ev.IsReplyToAgent {
			t.Errorf("unexpected flags: %+v", ev)
		}
		if ev.CommunityID != "g1" || ev.AuthorName != "alice" {
			t.Errorf("ev = %+v", ev)
		}
	})

	t.Run("direct message", func(t *testing.T) {
		ev := translateMessage(msg(alice, "hello", ""), testBotID)
		if !ev.IsDM {
			t.Error("empty guild ID should mean DM")
		}
	})

	t.Run("self message", func(t *testing.T) {
		me := &discordgo.User{ID: testBotID, Username: "bob", Bot: true}
		ev := translateMessage(msg(me, "my own reply", "g1"), testBotID)
		if !ev.Self {
			t.Error("own message not flagged Self")
		}
	})

	t.Run("mention", func(t *testing.T) {
		m := msg(alice, "<@bot-123> hi", "g1")
		m.Mentions = []*discordgo.User{{ID: testBotID}}
		ev := translateMessage(m, testBotID)
		if !ev.MentionsAgent {
			t.Error("mention not detected")
		}
	})

	t.Run("reply to agent", func(t *testing.T) {
		m := msg(alice, "no way", "g1")
		m.ReferencedMessage = &discordgo.Message{Author: &discordgo.User{ID: testBotID}}
		ev := translateMessage(m, testBotID)
		if !ev.IsReplyToAgent {
			t.Error("reply to agent not detected")
		}
	})

	t.Run("reply to someone else", func(t *testing.T) {
		m := msg(alice, "no way", "g1")
		m.ReferencedMessage = &discordgo.Message{Author: &discordgo.User{ID: "u2"}}
		ev := translateMessage(m, testBotID)
		if ev.IsReplyToAgent {
			t.Error("reply to third party flagged as reply to agent")
		}
	})

	t.Run("attachment appended", func(t *testing.T) {
		m := msg(alice, "look", "g1")
		m.Attachments = []*discordgo.MessageAttachment{{URL: "https://cdn.example/x.png"}}
		ev := translateMessage(m, testBotID)
		if ev.Content != "look\n[attachment: https://cdn.example/x.png]" {
			t.Errorf("content = %q", ev.Content)
		}
	})

	t.Run("nickname preferred", func(t *testing.T) {
		m := msg(alice, "hello", "g1")
		m.Member = &discordgo.Member{Nick: "ally"}
		ev := translateMessage(m, testBotID)
		if ev.AuthorName != "ally" {
			t.Errorf("author name = %q, want nickname", ev.AuthorName)
		}
	})
}

// recordingHandler counts the events that reach the orchestrator side.
type recordingHandler struct {
	messages []orchestrator.MessageEvent
}

func (h *recordingHandler) OnMessage(_ context.Context, ev orchestrator.MessageEvent) {
	h.messages = append(h.messages, ev)
}

func (h *recordingHandler) OnTyping(orchestrator.TypingEvent) {}

func TestIsCommand(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"!tx Test Server | general | hey", true},
		{"!tx", true},
		{"!control", true},
		{"!controlpanel", false},
		{"tx general hi", false},
		{"hey bob", false},
	}
	for _, tt := range tests {
		if got := isCommand(tt.in); got != tt.want {
			t.Errorf("isCommand(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNonOwnerCommandDropped(t *testing.T) {
	alice := &discordgo.User{ID: "u1", Username: "alice"}
	rec := &recordingHandler{}
	c := &Client{cfg: Config{OwnerID: "owner-1"}, botID: testBotID, handler: rec}

	c.handleMessage(nil, msg(alice, "!tx Test Server | general | hijack", "g1"))
	c.handleMessage(nil, msg(alice, "!control", "g1"))

	if len(rec.messages) != 0 {
		t.Errorf("non-owner commands forwarded as messages: %+v", rec.messages)
	}

	// An ordinary message from the same user still flows through.
	c.handleMessage(nil, msg(alice, "hey bob", "g1"))
	if len(rec.messages) != 1 {
		t.Fatalf("plain message not forwarded, got %d events", len(rec.messages))
	}
}

func TestStripSelfMention(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<@bot-123> !tx a | b | c", "!tx a | b | c"},
		{"<@!bot-123> !control", "!control"},
		{"!control", "!control"},
		{"just text", "just text"},
	}
	for _, tt := range tests {
		if got := stripSelfMention(tt.in, testBotID); got != tt.want {
			t.Errorf("stripSelfMention(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
