package chat

import (
	"sort"
	"sync"
)

// DefaultHistoryLimit is the number of messages kept per room.
const DefaultHistoryLimit = 100

// RoomStore keeps the recent history of every room the process has seen.
// Rooms are created lazily and live as long as the store does. A store is
// local to one process; separate relay instances do not share rooms.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string][]Message
	limit int
}

// NewRoomStore creates an empty store that keeps at most limit messages per
// room. A non-positive limit falls back to DefaultHistoryLimit.
func NewRoomStore(limit int) *RoomStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &RoomStore{
		rooms: make(map[string][]Message),
		limit: limit,
	}
}

// Limit returns the per-room history bound.
func (s *RoomStore) Limit() int {
	return s.limit
}

// Ensure creates room if it does not exist yet and reports whether it did.
func (s *RoomStore) Ensure(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room]; ok {
		return false
	}
	s.rooms[room] = make([]Message, 0, s.limit)
	return true
}

// Append adds msg to the end of room's history, creating the room if needed.
// When the history grows past the limit the oldest message is dropped, and
// Append reports true.
func (s *RoomStore) Append(room string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.rooms[room]
	if !ok {
		history = make([]Message, 0, s.limit)
	}
	history = append(history, msg)

	evicted := false
	for len(history) > s.limit {
		copy(history, history[1:])
		history = history[:len(history)-1]
		evicted = true
	}

	s.rooms[room] = history
	return evicted
}

// History returns a copy of room's messages, oldest first. Unknown rooms
// yield an empty, non-nil slice.
func (s *RoomStore) History(room string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.rooms[room]
	out := make([]Message, len(history))
	copy(out, history)
	return out
}

// Len returns the number of messages held for room.
func (s *RoomStore) Len(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}

// Rooms lists the identifiers of all known rooms in lexical order.
func (s *RoomStore) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
