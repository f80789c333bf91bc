// Package resolve maps free-text community and channel names, as typed by a
// human (or emitted by the generation backend), to concrete destinations.
// Resolution is a fixed five-step cascade; the first step that matches wins.
package resolve

import (
	"fmt"
	"strings"

	"github.com/streetlabs/bobwire/internal/platform"
)

// deicticPhrases select the current community regardless of its real name.
var deicticPhrases = map[string]bool{
	"this server":    true,
	"current server": true,
	"here":           true,
}

// Directory is the read-only view of the platform's community/channel
// listings the resolver works against.
type Directory interface {
	Communities() []platform.Community
	Channels(communityID string) []platform.Channel
}

// Destination is a successfully resolved routing target.
type Destination struct {
	CommunityID string
	ChannelID   string
}

// CommunityNotFoundError reports that no community matched the input.
// Both the raw and the normalized form are surfaced so the failure note in
// the origin channel shows what was actually compared.
type CommunityNotFoundError struct {
	Raw        string
	Normalized string
}

func (e *CommunityNotFoundError) Error() string {
	return fmt.Sprintf("no community matches %q (normalized: %q)", e.Raw, e.Normalized)
}

// ChannelNotFoundError reports that the community resolved but the channel
// input matched nothing text-capable inside it.
type ChannelNotFoundError struct {
	CommunityName string
	Raw           string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("community %q has no channel matching %q", e.CommunityName, e.Raw)
}

// Resolve maps a community name-or-ID and a channel name-or-ID to a concrete
// destination. currentCommunityID anchors deictic phrases ("here", "this
// server"); it may be empty when the request originated in a DM.
//
// Fuzzy matching is first-match-wins in directory iteration order, with no
// scoring. Ambiguous inputs therefore resolve to whichever candidate the
// directory lists first; callers that need determinism must pass IDs.
func Resolve(dir Directory, communityInput, channelInput, currentCommunityID string) (Destination, error) {
	community, ok := resolveCommunity(dir, communityInput, currentCommunityID)
	if !ok {
		return Destination{}, &CommunityNotFoundError{
			Raw:        communityInput,
			Normalized: Normalize(communityInput),
		}
	}

	channel, ok := resolveChannel(dir, community.ID, channelInput)
	if !ok {
		return Destination{}, &ChannelNotFoundError{
			CommunityName: community.Name,
			Raw:           channelInput,
		}
	}

	return Destination{CommunityID: community.ID, ChannelID: channel.ID}, nil
}

func resolveCommunity(dir Directory, input, currentID string) (platform.Community, bool) {
	communities := dir.Communities()

	// 1. Direct ID match.
	if isNumeric(input) {
		for _, c := range communities {
			if c.ID == input {
				return c, true
			}
		}
	}

	normalized := Normalize(input)

	// 2. Deictic phrase or the current community's own name.
	if currentID != "" {
		for _, c := range communities {
			if c.ID != currentID {
				continue
			}
			if deicticPhrases[normalized] || Normalize(c.Name) == normalized {
				return c, true
			}
			break
		}
	}

	// 3. Exact case-insensitive name match.
	for _, c := range communities {
		if strings.EqualFold(c.Name, input) {
			return c, true
		}
	}

	// 4. Normalized equality (defeats decorated fonts).
	for _, c := range communities {
		if Normalize(c.Name) == normalized {
			return c, true
		}
	}

	// 5. Substring fuzzy match, either direction.
	if normalized != "" {
		for _, c := range communities {
			cn := Normalize(c.Name)
			if cn == "" {
				continue
			}
			if strings.Contains(cn, normalized) || strings.Contains(normalized, cn) {
				return c, true
			}
		}
	}

	return platform.Community{}, false
}

func resolveChannel(dir Directory, communityID, input string) (platform.Channel, bool) {
	chans := dir.Channels(communityID)

	// 1. Direct ID match, text-capable channels only. An ID hit on a
	// non-text channel is no match; name-based steps still get a chance.
	if isNumeric(input) {
		for _, ch := range chans {
			if ch.ID == input && ch.TextCapable {
				return ch, true
			}
		}
	}

	normalized := Normalize(input)

	// 2–3. Exact case-insensitive name match. Channel names have no deictic
	// forms, so the cascade collapses to the name steps here.
	for _, ch := range chans {
		if ch.TextCapable && strings.EqualFold(ch.Name, input) {
			return ch, true
		}
	}

	// 4. Normalized equality.
	for _, ch := range chans {
		if ch.TextCapable && Normalize(ch.Name) == normalized {
			return ch, true
		}
	}

	// 5. Substring fuzzy match, either direction.
	if normalized != "" {
		for _, ch := range chans {
			if !ch.TextCapable {
				continue
			}
			cn := Normalize(ch.Name)
			if cn == "" {
				continue
			}
			if strings.Contains(cn, normalized) || strings.Contains(normalized, cn) {
				return ch, true
			}
		}
	}

	return platform.Channel{}, false
}
