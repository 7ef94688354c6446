// Package bot serializes platform events and operator commands onto a single
// goroutine and routes them to the reconciler and admin processor.
package bot

import "github.com/stacklok/boostsync/internal/membership"

// Event is anything the dispatcher can handle
type Event interface {
	// Kind names the event in logs
	Kind() string
}

// MemberChanged is a membership update observed in some guild
type MemberChanged struct {
	Change membership.Change
}

// Kind implements Event
func (MemberChanged) Kind() string { return "member-changed" }

// MemberJoined is a new member in some guild
type MemberJoined struct {
	GuildID string
	UserID  string
}

// Kind implements Event
func (MemberJoined) Kind() string { return "member-joined" }

// Command is a direct message that may carry an operator command
type Command struct {
	AuthorID  string
	ChannelID string
	Content   string
}

// Kind implements Event
func (Command) Kind() string { return "command" }
