// Package orchestrator decides when the agent speaks. It gates incoming
// events, coalesces bursts of messages into a single generation call, keeps a
// channel conversationally active after a reply, and routes directive payloads
// embedded in generated text to other channels.
package orchestrator

// MessageEvent is one received chat message, already translated from the
// platform's own event type.
type MessageEvent struct {
	MessageID      string
	ChannelID      string
	CommunityID    string // empty for DMs
	AuthorID       string
	AuthorName     string
	Content        string
	Self           bool // authored by the agent itself
	IsBot          bool // authored by any bot account
	IsDM           bool
	MentionsAgent  bool
	IsReplyToAgent bool
}

// TypingEvent is a typing-started notification.
type TypingEvent struct {
	ChannelID string
	UserID    string
	IsBot     bool
}
