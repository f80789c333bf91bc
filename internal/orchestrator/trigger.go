package orchestrator

import "strings"

// ShouldRespond decides whether a message warrants considering a reply.
// It is a pure OR over independent signals; the message is logged elsewhere
// regardless of the outcome. Self-authored messages never trigger.
func ShouldRespond(ev MessageEvent, callName string, activeConversation bool) bool {
	if ev.Self {
		return false
	}
	if ev.MentionsAgent || ev.IsDM || ev.IsReplyToAgent {
		return true
	}
	if callName != "" && strings.Contains(strings.ToLower(ev.Content), strings.ToLower(callName)) {
		return true
	}
	return activeConversation
}
