package ws

import (
	"log"
	"sync"

	"github.com/tandemhq/tandem/backend/internal/auth"
	"github.com/tandemhq/tandem/backend/internal/board"
	"github.com/tandemhq/tandem/backend/internal/presence"
	"github.com/tandemhq/tandem/backend/internal/protocol"
)

// Hub owns every live connection and routes whiteboard events. All board
// mutation happens inside Run's loop, one inbound message at a time, so a
// mutation and the broadcast it triggers are atomic with respect to other
// messages for the same workspace.
type Hub struct {
	// Joined clients by workspace
	rooms map[string]map[*Client]bool

	// Every live connection, for the global presence broadcast
	clients map[*Client]bool

	store    *board.Store
	registry *presence.Registry
	gate     auth.Gate
	resolver auth.Resolver

	inbound    chan *inboundEvent
	register   chan *Client
	unregister chan *Client

	// Guards rooms/clients for readers outside the run loop (stats API).
	mu sync.RWMutex
}

type inboundEvent struct {
	client *Client
	env    protocol.Envelope
}

func NewHub(store *board.Store, registry *presence.Registry, gate auth.Gate, resolver auth.Resolver) *Hub {
	if gate == nil {
		gate = auth.AllowAll{}
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
		store:      store,
		registry:   registry,
		gate:       gate,
		resolver:   resolver,
		inbound:    make(chan *inboundEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			h.registry.Connect(client.user.ID, client.user.Name, client.sessionID)
			log.Printf("Client connected: %s (user %s, online: %d)",
				client.sessionID, client.user.ID, h.registry.Count())
			h.broadcastPresence()

		case client := <-h.unregister:
			h.dropClient(client)

		case evt := <-h.inbound:
			h.dispatch(evt.client, evt.env)
		}
	}
}

func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for wid := range client.rooms {
		if members, ok := h.rooms[wid]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, wid)
			}
		}
	}
	close(client.send)
	h.mu.Unlock()

	last := h.registry.Disconnect(client.user.ID, client.sessionID)
	log.Printf("Client disconnected: %s (user %s)", client.sessionID, client.user.ID)

	if last {
		// The user is fully gone: clear their cursor and activity from every
		// board they touched and tell those rooms.
		for _, entry := range h.store.SweepUser(client.user.ID) {
			if entry.HadCursor {
				h.emitRoom(entry.WorkspaceID, protocol.EventCursors, protocol.CursorsPayload{
					WorkspaceID: entry.WorkspaceID,
					Cursors:     map[string]*board.Cursor{client.user.ID: nil},
				}, nil)
			}
			if entry.HadActivity {
				h.emitRoom(entry.WorkspaceID, protocol.EventActivity, protocol.ActivityPayload{
					WorkspaceID: entry.WorkspaceID,
					ActiveUsers: entry.Active,
				}, nil)
			}
		}
	}

	h.broadcastPresence()
}

func (h *Hub) joinRoom(workspaceID string, client *Client) {
	h.mu.Lock()
	if _, ok := h.rooms[workspaceID]; !ok {
		h.rooms[workspaceID] = make(map[*Client]bool)
	}
	h.rooms[workspaceID][client] = true
	client.rooms[workspaceID] = true
	count := len(h.rooms[workspaceID])
	h.mu.Unlock()

	log.Printf("User %s joined workspace %s (members: %d)", client.user.ID, workspaceID, count)
}

// emitRoom sends an event to every member of a workspace. A non-nil except
// skips that client (point edits, where the sender already applied the edit
// optimistically). A client with a full buffer loses the frame rather than
// blocking the loop; it reconverges on its next join.
func (h *Hub) emitRoom(workspaceID, event string, payload any, except *Client) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("Encode error for %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[workspaceID] {
		if client == except {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

// emitTo sends one event to a single client.
func (h *Hub) emitTo(client *Client, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("Encode error for %s: %v", event, err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// broadcastPresence pushes the global online list to every connection.
func (h *Hub) broadcastPresence() {
	data, err := protocol.Encode(protocol.EventPresence, h.registry.OnlineList())
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// Stats accessors for the REST surface.

func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make(map[string]int, len(h.rooms))
	for wid, members := range h.rooms {
		rooms[wid] = len(members)
	}
	return rooms
}

func (h *Hub) OnlineUsers() []presence.OnlineUser {
	return h.registry.OnlineList()
}
