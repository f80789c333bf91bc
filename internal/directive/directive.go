// Package directive extracts the embedded routing instruction the generation
// backend may place inside otherwise human-readable text:
//
//	[[TX: <community> | <channel> | <payload>]]
//
// Extraction from free-form model output is best-effort by nature: anything
// that is not exactly one well-formed occurrence is treated as "no directive".
package directive

import (
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`(?s)\[\[TX:\s*(.*?)\s*\|\s*(.*?)\s*\|\s*(.*?)\]\]`)

// Directive is a parsed routing instruction.
type Directive struct {
	Community string // destination community, name or ID, as written
	Channel   string // destination channel, name or ID, as written
	Payload   string // text to deliver at the destination
}

// Parse scans generated text for a routing directive. It returns the parsed
// directive (nil when absent, malformed, or occurring more than once) and the
// remaining text with the directive stripped and trimmed. When no directive
// is recognized the input is returned unchanged.
func Parse(text string) (*Directive, string) {
	matches := pattern.FindAllStringSubmatchIndex(text, 2)
	if len(matches) != 1 {
		return nil, text
	}

	m := matches[0]
	d := &Directive{
		Community: text[m[2]:m[3]],
		Channel:   text[m[4]:m[5]],
		Payload:   text[m[6]:m[7]],
	}
	if d.Community == "" || d.Channel == "" {
		return nil, text
	}

	remainder := strings.TrimSpace(text[:m[0]] + text[m[1]:])
	return d, remainder
}
