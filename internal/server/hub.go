// Package server coordinates client registration, room membership, message
// broadcast, and connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Tyrowin/vidigu-relay/internal/chat"
)

type clientEventKind int

const (
	clientJoin clientEventKind = iota
	clientSend
	clientLeave
)

// clientEvent is a join, send or disconnect raised by a client. All of them
// travel through one channel so each client's events are handled in the
// order it produced them.
type clientEvent struct {
	kind   clientEventKind
	client *Client
	room   string
	text   string
}

// Hub owns the connection registry and room membership and dispatches every
// client event from a single goroutine. Room history lives in the injected
// chat.RoomStore.
type Hub struct {
	store    *chat.RoomStore
	clients  map[*Client]bool
	rooms    map[string][]*Client
	register chan *Client
	inbound  chan clientEvent
	mutex    sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	now      func() time.Time
}

// NewHub creates a Hub that records room history in store. A nil store gets
// a fresh one with the default history limit.
func NewHub(store *chat.RoomStore) *Hub {
	if store == nil {
		store = chat.NewRoomStore(chat.DefaultHistoryLimit)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		store:    store,
		clients:  make(map[*Client]bool),
		rooms:    make(map[string][]*Client),
		register: make(chan *Client),
		inbound:  make(chan clientEvent, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Store returns the room history store.
func (h *Hub) Store() *chat.RoomStore {
	return h.store
}

// Register hands a new client to the hub. It returns false once the hub has
// shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Join asks the hub to move client into room.
func (h *Hub) Join(client *Client, room string) bool {
	return h.submit(clientEvent{kind: clientJoin, client: client, room: room})
}

// Send asks the hub to record text in room and broadcast it.
func (h *Hub) Send(client *Client, room, text string) bool {
	return h.submit(clientEvent{kind: clientSend, client: client, room: room, text: text})
}

// Unregister asks the hub to drop client.
func (h *Hub) Unregister(client *Client) bool {
	return h.submit(clientEvent{kind: clientLeave, client: client})
}

func (h *Hub) submit(ev clientEvent) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbound <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RoomMembers lists the ids of the clients in room, in join order.
func (h *Hub) RoomMembers(room string) []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.rooms[room]
	ids := make([]string, 0, len(members))
	for _, client := range members {
		ids = append(ids, client.id)
	}
	return ids
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case ev := <-h.inbound:
			switch ev.kind {
			case clientJoin:
				h.handleJoin(ev.client, ev.room)
			case clientSend:
				h.handleSend(ev.client, ev.room, ev.text)
			case clientLeave:
				h.handleUnregister(ev.client)
			}
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		log.Printf("Received nil client registration; skipping")
		return
	}

	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("Client %s (%s as %s/%s) registered. Total clients: %d",
		client.id, client.addr, client.identity.Name, client.identity.Role, clientCount)

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// handleJoin moves client into room, sends it the room history and
// announces it to everyone in the room, itself included.
func (h *Hub) handleJoin(client *Client, room string) {
	if room == "" {
		log.Printf("Client %s sent joinRoom without a room; ignoring", client.addr)
		return
	}

	h.mutex.Lock()
	if !h.clients[client] {
		h.mutex.Unlock()
		return
	}
	previous := client.room
	if previous != room {
		if previous != "" {
			h.removeMemberLocked(previous, client)
		}
		h.rooms[room] = append(h.rooms[room], client)
		client.room = room
	}
	name := client.identity.Name
	h.mutex.Unlock()

	if previous != "" && previous != room {
		log.Printf("%s left room %s", name, previous)
		h.broadcastMessage(previous, chat.SystemMessage(chat.LeaveNotice(name), h.now()))
	}

	if h.store.Ensure(room) {
		log.Printf("Created room %s", room)
	}
	log.Printf("%s joined room %s", name, room)

	history, err := encodeEvent(EventChatHistory, h.store.History(room))
	if err != nil {
		log.Printf("Error encoding history for room %s: %v", room, err)
		return
	}
	if !h.deliver(client, history) {
		h.removeFailedClients([]*Client{client})
		return
	}

	h.broadcastMessage(room, chat.SystemMessage(chat.JoinNotice(name), h.now()))
}

// handleSend records a message and broadcasts it. Events missing a room or
// text are dropped without a reply.
func (h *Hub) handleSend(client *Client, room, text string) {
	if room == "" || text == "" {
		return
	}

	h.mutex.RLock()
	registered := h.clients[client]
	h.mutex.RUnlock()
	if !registered {
		return
	}

	msg := chat.NewMessage(client.identity, text, h.now())
	if h.store.Append(room, msg) {
		log.Printf("Room %s history full; evicted oldest message", room)
	}
	h.broadcastMessage(room, msg)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	room := client.room
	if room != "" {
		h.removeMemberLocked(room, client)
		client.room = ""
	}
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, clientCount)

	if room != "" {
		h.broadcastMessage(room, chat.SystemMessage(chat.LeaveNotice(client.identity.Name), h.now()))
	}
}

// removeMemberLocked drops client from room's member list. The caller holds
// h.mutex for writing.
func (h *Hub) removeMemberLocked(room string, client *Client) {
	members := h.rooms[room]
	kept := members[:0]
	for _, member := range members {
		if member != client {
			kept = append(kept, member)
		}
	}
	for i := len(kept); i < len(members); i++ {
		members[i] = nil
	}
	if len(kept) == 0 {
		delete(h.rooms, room)
		return
	}
	h.rooms[room] = kept
}

func (h *Hub) broadcastMessage(room string, msg chat.Message) {
	payload, err := encodeEvent(EventMessage, msg)
	if err != nil {
		log.Printf("Error encoding message for room %s: %v", room, err)
		return
	}
	h.broadcastToRoom(room, payload)
}

// broadcastToRoom delivers payload to every member of room in join order.
func (h *Hub) broadcastToRoom(room string, payload []byte) {
	members := h.getRoomSnapshot(room)
	if len(members) == 0 {
		return
	}

	var clientsToRemove []*Client
	for _, client := range members {
		if !h.deliver(client, payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) getRoomSnapshot(room string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.rooms[room]
	snapshot := make([]*Client, len(members))
	copy(snapshot, members)
	return snapshot
}

// deliver queues message for client without blocking. It reports false when
// the client is gone or its send buffer is full.
func (h *Hub) deliver(client *Client, message []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// departure is a dropped client's room and name, kept so the room can be
// told once the hub lock is released.
type departure struct {
	room string
	name string
}

// removeFailedClients drops clients that could not keep up and announces
// their departure to the rooms they were in. Their write pump closes the
// connection once the send channel is closed.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	var departures []departure
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			if client.room != "" {
				h.removeMemberLocked(client.room, client)
				departures = append(departures, departure{room: client.room, name: client.identity.Name})
				client.room = ""
			}
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s from %s removed due to full send buffer", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}

	// A notice may drop further slow clients; each is removed only once.
	for _, d := range departures {
		h.broadcastMessage(d.room, chat.SystemMessage(chat.LeaveNotice(d.name), h.now()))
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		client.closed = true
		client.room = ""
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string][]*Client)
	h.mutex.Unlock()

	for _, client := range clients {
		// Closing send lets the write pump return without waiting for a ping tick.
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections; discarding history of rooms %v", len(clients), h.store.Rooms())
}

// Shutdown stops the hub and waits for all client goroutines to finish, or
// until timeout elapses.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
