// Package discord adapts the Discord gateway to the platform interface the
// orchestrator consumes, translating events and handling owner commands.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/streetlabs/bobwire/internal/orchestrator"
	"github.com/streetlabs/bobwire/internal/platform"
)

// Outbound sends are throttled well under Discord's global limit so a burst
// of directive deliveries cannot trip the gateway.
const (
	sendRatePerSecond = 1
	sendBurst         = 5
)

// Handler receives translated platform events.
type Handler interface {
	OnMessage(ctx context.Context, ev orchestrator.MessageEvent)
	OnTyping(ev orchestrator.TypingEvent)
}

// Config carries the Discord connection settings.
type Config struct {
	Token   string
	OwnerID string

	// IssueControlToken mints a one-time login token for the control
	// surface; nil disables the !control command.
	IssueControlToken func() string
}

// Client wraps a discordgo session and implements platform.Client.
type Client struct {
	session *discordgo.Session
	cfg     Config
	botID   string // populated on start
	limiter *rate.Limiter
	handler Handler
}

// New creates a Discord client from config.
func New(cfg Config) (*Client, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessageTyping |
		discordgo.IntentsDirectMessageTyping |
		discordgo.IntentsMessageContent

	return &Client{
		session: session,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(sendRatePerSecond), sendBurst),
	}, nil
}

// SetHandler registers the event consumer. Must be called before Start.
func (c *Client) SetHandler(h Handler) {
	c.handler = h
}

// Start opens the gateway connection and begins receiving events.
func (c *Client) Start(_ context.Context) error {
	slog.Info("starting discord connection")

	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleTyping)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botID = user.ID

	slog.Info("discord connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection.
func (c *Client) Stop(_ context.Context) error {
	slog.Info("stopping discord connection")
	return c.session.Close()
}

// History fetches up to limit messages from a channel, newest first.
func (c *Client) History(_ context.Context, channelID string, limit int) ([]platform.Message, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("fetch discord history: %w", err)
	}

	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Author == nil {
			continue
		}
		out = append(out, platform.Message{
			ID:         m.ID,
			ChannelID:  m.ChannelID,
			AuthorID:   m.Author.ID,
			AuthorName: displayName(m.Author, m.Member),
			Content:    m.Content,
			Bot:        m.Author.Bot,
			Self:       m.Author.ID == c.botID,
			Timestamp:  m.Timestamp,
		})
	}
	return out, nil
}

// Send delivers text to a channel, splitting into multiple messages if over
// Discord's 2000 character limit.
func (c *Client) Send(ctx context.Context, channelID, text string) error {
	const maxLen = 2000

	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			// Try to break at a newline
			cutAt := maxLen
			if idx := strings.LastIndexByte(text[:maxLen], '\n'); idx > maxLen/2 {
				cutAt = idx + 1
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		if _, err := c.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// SendDM delivers text to a user's direct-message channel.
func (c *Client) SendDM(ctx context.Context, userID, text string) error {
	ch, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open discord DM channel: %w", err)
	}
	return c.Send(ctx, ch.ID, text)
}

// React adds an emoji reaction to a message.
func (c *Client) React(_ context.Context, channelID, messageID, emoji string) error {
	if err := c.session.MessageReactionAdd(channelID, messageID, emoji); err != nil {
		return fmt.Errorf("add discord reaction: %w", err)
	}
	return nil
}

// DeleteMessage removes a message from a channel.
func (c *Client) DeleteMessage(_ context.Context, channelID, messageID string) error {
	if err := c.session.ChannelMessageDelete(channelID, messageID); err != nil {
		return fmt.Errorf("delete discord message: %w", err)
	}
	return nil
}

// Communities lists the guilds the bot is a member of, from state cache.
func (c *Client) Communities() []platform.Community {
	guilds := c.session.State.Guilds
	out := make([]platform.Community, 0, len(guilds))
	for _, g := range guilds {
		out = append(out, platform.Community{ID: g.ID, Name: g.Name})
	}
	return out
}

// Channels lists one guild's channels, from state cache.
func (c *Client) Channels(communityID string) []platform.Channel {
	guild, err := c.session.State.Guild(communityID)
	if err != nil {
		return nil
	}
	out := make([]platform.Channel, 0, len(guild.Channels))
	for _, ch := range guild.Channels {
		out = append(out, platform.Channel{
			ID:          ch.ID,
			CommunityID: ch.GuildID,
			Name:        ch.Name,
			TextCapable: textCapable(ch.Type),
		})
	}
	return out
}

// CommunityOf reports the guild a channel belongs to; ok is false for DMs.
func (c *Client) CommunityOf(channelID string) (platform.Community, bool) {
	ch, err := c.session.State.Channel(channelID)
	if err != nil || ch.GuildID == "" {
		return platform.Community{}, false
	}
	guild, err := c.session.State.Guild(ch.GuildID)
	if err != nil {
		return platform.Community{}, false
	}
	return platform.Community{ID: guild.ID, Name: guild.Name}, true
}

// ChannelInfo looks up a single channel by ID, from state cache.
func (c *Client) ChannelInfo(channelID string) (platform.Channel, bool) {
	ch, err := c.session.State.Channel(channelID)
	if err != nil {
		return platform.Channel{}, false
	}
	return platform.Channel{
		ID:          ch.ID,
		CommunityID: ch.GuildID,
		Name:        ch.Name,
		TextCapable: textCapable(ch.Type),
	}, true
}

func textCapable(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeDM:
		return true
	default:
		return false
	}
}

// displayName returns the best available name for a message author.
// Priority: server nickname > global display name > username.
func displayName(u *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
