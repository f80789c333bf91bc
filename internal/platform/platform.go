// Package platform defines the narrow surface the orchestration layer
// consumes from the chat platform: event payloads, history fetch, sending,
// and the community/channel directory. Concrete adapters (Discord) live in
// subpackages.
package platform

import (
	"context"
	"time"
)

// Message is one entry of a channel's history.
type Message struct {
	ID         string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Content    string
	Bot        bool
	Self       bool // authored by the agent itself
	Timestamp  time.Time
}

// Community is a top-level chat group (a Discord guild).
type Community struct {
	ID   string
	Name string
}

// Channel is an addressable conversation stream within a community.
type Channel struct {
	ID          string
	CommunityID string
	Name        string
	TextCapable bool
}

// Client is the platform collaborator consumed by the dispatcher and the
// entity resolver. Implementations must be safe for concurrent use.
type Client interface {
	// History fetches up to limit messages from a channel, newest first.
	History(ctx context.Context, channelID string, limit int) ([]Message, error)

	// Send delivers text to a channel.
	Send(ctx context.Context, channelID, text string) error

	// SendDM delivers text to a user's direct-message channel.
	SendDM(ctx context.Context, userID, text string) error

	// React adds an emoji reaction to a message.
	React(ctx context.Context, channelID, messageID, emoji string) error

	// DeleteMessage removes a message from a channel.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// Communities lists every community the agent is a member of.
	Communities() []Community

	// Channels lists the channels of one community.
	Channels(communityID string) []Channel

	// CommunityOf reports the community a channel belongs to.
	// ok is false for direct-message channels.
	CommunityOf(channelID string) (Community, bool)

	// ChannelInfo looks up a single channel by ID.
	ChannelInfo(channelID string) (Channel, bool)
}
