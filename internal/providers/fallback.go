package providers

import "context"

// The reply given when no generation backend is configured. Keeping the bot
// responsive with a fixed line beats silently dropping every trigger.
const unconfiguredReply = "Sorry, my brain isn't plugged in right now. Ask whoever runs me to set an API key."

// UnconfiguredGenerator stands in when no API key is available. Every call
// succeeds and returns the same apology.
type UnconfiguredGenerator struct{}

// NewUnconfigured returns the fallback generator.
func NewUnconfigured() *UnconfiguredGenerator { return &UnconfiguredGenerator{} }

func (g *UnconfiguredGenerator) Name() string { return "unconfigured" }

func (g *UnconfiguredGenerator) Generate(_ context.Context, _ Request) (string, error) {
	return unconfiguredReply, nil
}
