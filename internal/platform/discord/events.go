package discord

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/streetlabs/bobwire/internal/orchestrator"
)

// handleMessage translates incoming Discord messages. The agent's own
// messages are forwarded too; the orchestrator logs them and its trigger gate
// filters them out.
func (c *Client) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || c.handler == nil {
		return
	}

	if content := strings.TrimSpace(stripSelfMention(m.Content, c.botID)); m.Author.ID != c.botID && isCommand(content) {
		if c.cfg.OwnerID != "" && m.Author.ID == c.cfg.OwnerID {
			c.runOwnerCommand(m, content)
		} else {
			slog.Warn("command from non-owner ignored",
				"author_id", m.Author.ID, "channel_id", m.ChannelID)
		}
		return
	}

	ev := translateMessage(m, c.botID)

	slog.Debug("discord message received",
		"channel_id", ev.ChannelID,
		"author_id", ev.AuthorID,
		"is_dm", ev.IsDM,
		"self", ev.Self,
	)

	c.handler.OnMessage(context.Background(), ev)
}

// handleTyping forwards typing-started notifications.
func (c *Client) handleTyping(_ *discordgo.Session, t *discordgo.TypingStart) {
	if c.handler == nil {
		return
	}

	isBot := t.UserID == c.botID
	if t.Member != nil && t.Member.User != nil {
		isBot = isBot || t.Member.User.Bot
	}

	c.handler.OnTyping(orchestrator.TypingEvent{
		ChannelID: t.ChannelID,
		UserID:    t.UserID,
		IsBot:     isBot,
	})
}

// translateMessage maps a Discord message to the orchestrator's event type.
func translateMessage(m *discordgo.MessageCreate, botID string) orchestrator.MessageEvent {
	mentioned := false
	for _, u := range m.Mentions {
		if u.ID == botID {
			mentioned = true
			break
		}
	}

	replyToAgent := m.ReferencedMessage != nil &&
		m.ReferencedMessage.Author != nil &&
		m.ReferencedMessage.Author.ID == botID

	content := m.Content
	for _, att := range m.Attachments {
		if content != "" {
			content += "\n"
		}
		content += "[attachment: " + att.URL + "]"
	}

	return orchestrator.MessageEvent{
		MessageID:      m.ID,
		ChannelID:      m.ChannelID,
		CommunityID:    m.GuildID,
		AuthorID:       m.Author.ID,
		AuthorName:     displayName(m.Author, m.Member),
		Content:        content,
		Self:           m.Author.ID == botID,
		IsBot:          m.Author.Bot,
		IsDM:           m.GuildID == "",
		MentionsAgent:  mentioned,
		IsReplyToAgent: replyToAgent,
	}
}

// stripSelfMention removes a leading @bot mention so command parsing sees the
// bare text.
func stripSelfMention(content, botID string) string {
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(content, prefix))
		}
	}
	return content
}
