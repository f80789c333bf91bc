package discord

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/streetlabs/bobwire/internal/resolve"
)

// Owner commands typed in any channel the bot can read:
//
//	!tx <community> | <channel> | <message>   deliver a message elsewhere
//	!control                                   DM a one-time control token
//
// Attempts by anyone else are logged and dropped without a reply.

// isCommand reports whether stripped message content is shaped like an owner
// command.
func isCommand(content string) bool {
	return strings.HasPrefix(content, "!tx") || content == "!control"
}

func (c *Client) runOwnerCommand(m *discordgo.MessageCreate, content string) {
	switch {
	case strings.HasPrefix(content, "!tx"):
		c.runTx(m, strings.TrimSpace(strings.TrimPrefix(content, "!tx")))
	case content == "!control":
		c.runControl(m)
	}
}

func (c *Client) runTx(m *discordgo.MessageCreate, args string) {
	ctx := context.Background()

	parts := strings.SplitN(args, "|", 3)
	if len(parts) != 3 {
		_ = c.Send(ctx, m.ChannelID, "usage: !tx <community> | <channel> | <message>")
		return
	}
	community := strings.TrimSpace(parts[0])
	channel := strings.TrimSpace(parts[1])
	payload := strings.TrimSpace(parts[2])

	dest, err := resolve.Resolve(c, community, channel, m.GuildID)
	if err != nil {
		_ = c.Send(ctx, m.ChannelID, "can't deliver that: "+err.Error())
		return
	}

	if err := c.Send(ctx, dest.ChannelID, payload); err != nil {
		slog.Warn("tx command send failed", "dest_channel_id", dest.ChannelID, "error", err)
		_ = c.Send(ctx, m.ChannelID, "delivery failed, check the logs")
		return
	}

	if err := c.React(ctx, m.ChannelID, m.ID, "✅"); err != nil {
		slog.Debug("tx ack reaction failed", "error", err)
	}
}

func (c *Client) runControl(m *discordgo.MessageCreate) {
	if c.cfg.IssueControlToken == nil {
		return
	}
	ctx := context.Background()

	token := c.cfg.IssueControlToken()
	if err := c.SendDM(ctx, m.Author.ID, "One-time control token: "+token); err != nil {
		slog.Warn("control token DM failed", "error", err)
		return
	}

	// Keep the request out of the channel, the token reply is DM-only.
	if m.GuildID != "" {
		if err := c.DeleteMessage(ctx, m.ChannelID, m.ID); err != nil {
			slog.Debug("control command cleanup failed", "error", err)
		}
	}
}
