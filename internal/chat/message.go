// Package chat defines the messages exchanged in rooms and the in-memory
// store that keeps each room's recent history.
package chat

import "time"

// Display names and roles assigned by the relay itself.
const (
	SystemName        = "System"
	SystemRole        = "system"
	DefaultRole       = "user"
	GuestName         = "Guest"
	AuthenticatedName = "Authenticated User"
	InvalidTokenName  = "Invalid Token User"
)

// timestampLayout renders ISO-8601 timestamps with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Identity is the display name and role a connection speaks with.
type Identity struct {
	Name string
	Role string
}

// GuestIdentity is assigned to connections that present no credential.
func GuestIdentity() Identity {
	return Identity{Name: GuestName, Role: DefaultRole}
}

// InvalidTokenIdentity is assigned to connections whose credential could not
// be resolved.
func InvalidTokenIdentity() Identity {
	return Identity{Name: InvalidTokenName, Role: DefaultRole}
}

// Message is a single chat line. It is immutable once created.
type Message struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
}

// NewMessage builds a message authored by the given identity.
func NewMessage(author Identity, text string, at time.Time) Message {
	role := author.Role
	if role == "" {
		role = DefaultRole
	}
	return Message{
		Username:  author.Name,
		Text:      text,
		Timestamp: FormatTimestamp(at),
		Role:      role,
	}
}

// SystemMessage builds a notice authored by the relay.
func SystemMessage(text string, at time.Time) Message {
	return Message{
		Username:  SystemName,
		Text:      text,
		Timestamp: FormatTimestamp(at),
		Role:      SystemRole,
	}
}

// JoinNotice is the text broadcast when name enters a room.
func JoinNotice(name string) string {
	return name + " has entered the chat"
}

// LeaveNotice is the text broadcast when name leaves a room.
func LeaveNotice(name string) string {
	return name + " has left the chat"
}

// FormatTimestamp renders t in UTC as an ISO-8601 string.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
