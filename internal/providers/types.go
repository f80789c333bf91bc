package providers

import "context"

// Silence is the sentinel the model emits when it decides not to answer.
// Callers drop the whole response when the trimmed content equals it.
const Silence = "[SILENCE]"

// Turn is one entry of channel history presented to the model, oldest first.
type Turn struct {
	Role    string // "user" or "assistant"
	Author  string // display name for user turns, empty for the agent's own
	Content string
}

// Request carries the assembled context for one generation call.
type Request struct {
	System string // persona, memory and standing instructions
	Turns  []Turn
	Model  string // overrides the generator's default when non-empty
}

// Generator produces a reply from assembled conversation context.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)

	// Name returns the backend identifier (e.g. "anthropic", "openai").
	Name() string
}
