// Package store persists the bot's durable state: the per-user respect tier,
// the full message log, per-user memory and per-community personas.
package store

import (
	"context"
	"time"
)

// DefaultTier is assumed for any user without an explicit respect row.
// Tier 1 is the highest standing, tier 3 the lowest.
const DefaultTier = 2

// MessageRecord is one logged chat message.
type MessageRecord struct {
	MessageID   string
	ChannelID   string
	CommunityID string
	UserID      string
	Username    string
	Content     string
	CreatedAt   time.Time
}

// Persona is the configurable personality for one community.
type Persona struct {
	CommunityID string
	Description string
	Tags        string
}

// Store is the persistence interface the orchestrator works against.
type Store interface {
	// GetTier returns the respect tier for a user, DefaultTier when unset.
	GetTier(ctx context.Context, userID string) (int, error)
	// SetTier records a respect tier. Valid range is 1 to 3.
	SetTier(ctx context.Context, userID string, tier int) error

	// LogMessage appends a message to the log. Every observed message is
	// logged, whether or not it produces a response.
	LogMessage(ctx context.Context, rec MessageRecord) error
	// RecentMessages returns up to limit logged messages for a channel,
	// newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]MessageRecord, error)
	// RecentMessagesByUser returns up to limit logged messages from one
	// user across all channels, newest first.
	RecentMessagesByUser(ctx context.Context, userID string, limit int) ([]MessageRecord, error)

	// Memory returns the stored free-text memory for a user, "" when unset.
	Memory(ctx context.Context, userID string) (string, error)
	SetMemory(ctx context.Context, userID, memory string) error

	// Persona returns the persona for a community; a zero-value Persona
	// (empty description) when none is configured.
	Persona(ctx context.Context, communityID string) (Persona, error)
	SetPersona(ctx context.Context, p Persona) error

	Close() error
}
