package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tandemhq/tandem/backend/internal/auth"
	"github.com/tandemhq/tandem/backend/internal/board"
	"github.com/tandemhq/tandem/backend/internal/presence"
	"github.com/tandemhq/tandem/backend/internal/protocol"
)

// settle gives the hub's run loop time to drain its channels.
const settle = 20 * time.Millisecond

func newTestHub(gate auth.Gate) (*Hub, *board.Store) {
	store := board.NewStore()
	hub := NewHub(store, presence.NewRegistry(), gate, nil)
	go hub.Run()
	return hub, store
}

// A client with no real socket behind it; outbound frames pile up in send.
func newTestClient(hub *Hub, userID, name string) *Client {
	return &Client{
		hub:       hub,
		send:      make(chan []byte, 256),
		sessionID: "sess-" + userID,
		user:      auth.User{ID: userID, Name: name},
		rooms:     make(map[string]bool),
	}
}

func send(hub *Hub, c *Client, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	hub.inbound <- &inboundEvent{client: c, env: protocol.Envelope{Event: event, Data: data}}
}

// drain empties a client's send buffer and returns the decoded envelopes.
func drain(t *testing.T, c *Client) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			env, err := protocol.Decode(raw)
			if err != nil {
				t.Fatalf("Received undecodable frame: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventsOf(envs []protocol.Envelope, event string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, e := range envs {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func joinWorkspace(hub *Hub, c *Client, workspaceID string) {
	hub.register <- c
	send(hub, c, protocol.EventJoin, protocol.JoinPayload{WorkspaceID: workspaceID})
	time.Sleep(settle)
}

func TestJoinReceivesInitActivityCursors(t *testing.T) {
	hub, store := newTestHub(nil)
	store.Apply("w1", board.Action{Type: board.ActionAddShape, User: "u0",
		Shape: &board.Shape{ID: "s1", X: 1, Y: 2, Tool: "rectangle"}})

	c := newTestClient(hub, "u1", "Ada")
	joinWorkspace(hub, c, "w1")

	envs := drain(t, c)

	inits := eventsOf(envs, protocol.EventInit)
	if len(inits) != 1 {
		t.Fatalf("Expected 1 init event, got %d", len(inits))
	}
	var init protocol.InitPayload
	if err := json.Unmarshal(inits[0].Data, &init); err != nil {
		t.Fatalf("Failed to decode init: %v", err)
	}
	if len(init.Shapes) != 1 || init.Shapes[0].ID != "s1" {
		t.Errorf("Init should carry the existing shape, got %+v", init.Shapes)
	}

	if len(eventsOf(envs, protocol.EventActivity)) != 1 {
		t.Error("Join should deliver the activity map")
	}
	if len(eventsOf(envs, protocol.EventCursors)) != 1 {
		t.Error("Join should deliver the cursor map")
	}
}

func TestShapeUndoRedoScenario(t *testing.T) {
	hub, store := newTestHub(nil)

	a := newTestClient(hub, "ua", "Ada")
	b := newTestClient(hub, "ub", "Bob")
	joinWorkspace(hub, a, "w1")
	joinWorkspace(hub, b, "w1")
	drain(t, a)
	drain(t, b)

	// A draws a shape: B hears about it, A does not (A already has it).
	send(hub, a, protocol.EventShape, protocol.ShapePayload{
		WorkspaceID: "w1",
		Shape:       &board.Shape{ID: "s1", X: 0, Y: 0, Width: 10, Height: 10, Tool: "rectangle"},
	})
	time.Sleep(settle)

	if got := eventsOf(drain(t, a), protocol.EventShape); len(got) != 0 {
		t.Errorf("Sender should not receive its own shape event, got %d", len(got))
	}
	bShapes := eventsOf(drain(t, b), protocol.EventShape)
	if len(bShapes) != 1 {
		t.Fatalf("Expected 1 shape event for B, got %d", len(bShapes))
	}
	if len(store.Snapshot("w1").Shapes) != 1 {
		t.Fatal("Board should hold the shape")
	}

	// A undoes: the whole room, sender included, gets an empty init.
	send(hub, a, protocol.EventUndo, protocol.UndoPayload{WorkspaceID: "w1"})
	time.Sleep(settle)

	for name, c := range map[string]*Client{"A": a, "B": b} {
		inits := eventsOf(drain(t, c), protocol.EventInit)
		if len(inits) != 1 {
			t.Fatalf("%s: expected 1 init after undo, got %d", name, len(inits))
		}
		var init protocol.InitPayload
		json.Unmarshal(inits[0].Data, &init)
		if len(init.Shapes) != 0 {
			t.Errorf("%s: board should be empty after undo", name)
		}
	}

	// A redoes: the shape comes back for everyone.
	send(hub, a, protocol.EventRedo, protocol.UndoPayload{WorkspaceID: "w1"})
	time.Sleep(settle)

	for name, c := range map[string]*Client{"A": a, "B": b} {
		inits := eventsOf(drain(t, c), protocol.EventInit)
		if len(inits) != 1 {
			t.Fatalf("%s: expected 1 init after redo, got %d", name, len(inits))
		}
		var init protocol.InitPayload
		json.Unmarshal(inits[0].Data, &init)
		if len(init.Shapes) != 1 || init.Shapes[0].ID != "s1" {
			t.Errorf("%s: shape s1 should be back after redo", name)
		}
	}
}

func TestEraseBroadcastIncludesSender(t *testing.T) {
	hub, store := newTestHub(nil)

	a := newTestClient(hub, "ua", "Ada")
	joinWorkspace(hub, a, "w1")
	drain(t, a)

	send(hub, a, protocol.EventShape, protocol.ShapePayload{
		WorkspaceID: "w1",
		Shape:       &board.Shape{ID: "s1", X: 3, Y: 3, Tool: "rectangle"},
	})
	// Radius omitted: the default of 10 applies, and (3,3) is well inside
	// it from (5,5).
	send(hub, a, protocol.EventErase, map[string]any{"workspaceId": "w1", "x": 5, "y": 5})
	time.Sleep(settle)

	erases := eventsOf(drain(t, a), protocol.EventErase)
	if len(erases) != 1 {
		t.Fatalf("Eraser should get the erase event back, got %d", len(erases))
	}
	var e protocol.EraseBroadcast
	json.Unmarshal(erases[0].Data, &e)
	if e.Radius != board.DefaultEraseRadius {
		t.Errorf("Expected default radius %d, got %v", board.DefaultEraseRadius, e.Radius)
	}

	if len(store.Snapshot("w1").Shapes) != 0 {
		t.Error("Shape within radius should be erased")
	}
	actions, _ := store.Counts("w1")
	if actions != 2 {
		t.Errorf("Expected add + erase in the log, got %d actions", actions)
	}
}

func TestTransformForwardedToOthersOnly(t *testing.T) {
	hub, store := newTestHub(nil)

	a := newTestClient(hub, "ua", "Ada")
	b := newTestClient(hub, "ub", "Bob")
	joinWorkspace(hub, a, "w1")
	joinWorkspace(hub, b, "w1")

	send(hub, a, protocol.EventShape, protocol.ShapePayload{
		WorkspaceID: "w1",
		Shape:       &board.Shape{ID: "s1", X: 0, Y: 0, Tool: "rectangle"},
	})
	send(hub, a, protocol.EventTransform, map[string]any{
		"workspaceId": "w1",
		"updated":     map[string]any{"type": "shape", "id": "s1", "x": 42.0, "y": 7.0, "tool": "rectangle"},
	})
	time.Sleep(settle)
	drain(t, a)

	if len(eventsOf(drain(t, b), protocol.EventTransform)) != 1 {
		t.Error("B should receive the transform")
	}

	snap := store.Snapshot("w1")
	if len(snap.Shapes) != 1 || snap.Shapes[0].X != 42 {
		t.Errorf("Shape should have moved to x=42, got %+v", snap.Shapes)
	}
}

func TestMissingWorkspaceIDDropped(t *testing.T) {
	hub, store := newTestHub(nil)

	a := newTestClient(hub, "ua", "Ada")
	hub.register <- a
	send(hub, a, protocol.EventShape, protocol.ShapePayload{
		Shape: &board.Shape{ID: "s1", Tool: "rectangle"},
	})
	time.Sleep(settle)

	for _, wid := range store.WorkspaceIDs() {
		if len(store.Snapshot(wid).Shapes) != 0 {
			t.Error("Event without workspaceId must not mutate any board")
		}
	}
}

type denyGate struct{}

func (denyGate) IsMember(string, string) bool { return false }

func TestUnauthorizedEventsDroppedSilently(t *testing.T) {
	hub, store := newTestHub(denyGate{})

	a := newTestClient(hub, "ua", "Ada")
	hub.register <- a
	send(hub, a, protocol.EventJoin, protocol.JoinPayload{WorkspaceID: "w1"})
	send(hub, a, protocol.EventShape, protocol.ShapePayload{
		WorkspaceID: "w1",
		Shape:       &board.Shape{ID: "s1", Tool: "rectangle"},
	})
	time.Sleep(settle)

	if hub.GetRoomCount() != 0 {
		t.Error("Denied join must not add the client to a room")
	}
	if len(store.Snapshot("w1").Shapes) != 0 {
		t.Error("Unauthorized edit must not mutate the board")
	}
	// No error frame either: silence keeps membership unguessable.
	for _, env := range drain(t, a) {
		if env.Event != protocol.EventPresence {
			t.Errorf("Unexpected reply to unauthorized sender: %s", env.Event)
		}
	}
}

// dispatchEvent feeds one event straight into the hub, bypassing the run
// loop, so tests can force an exact ordering against dropClient.
func dispatchEvent(t *testing.T, hub *Hub, c *Client, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	hub.dispatch(c, protocol.Envelope{Event: event, Data: data})
}

func TestStaleEventAfterDisconnectIsDropped(t *testing.T) {
	store := board.NewStore()
	hub := NewHub(store, presence.NewRegistry(), nil, nil)

	a := newTestClient(hub, "ua", "Ada")
	hub.clients[a] = true
	hub.registry.Connect(a.user.ID, a.user.Name, a.sessionID)
	dispatchEvent(t, hub, a, protocol.EventJoin, protocol.JoinPayload{WorkspaceID: "w1"})
	drain(t, a)

	// Events Ada queued before her connection died can still arrive after
	// the disconnect was handled. They must all be ignored: the send
	// channel is closed by now.
	hub.dropClient(a)

	dispatchEvent(t, hub, a, protocol.EventShape, protocol.ShapePayload{
		WorkspaceID: "w1",
		Shape:       &board.Shape{ID: "s1", Tool: "rectangle"},
	})
	dispatchEvent(t, hub, a, protocol.EventJoin, protocol.JoinPayload{WorkspaceID: "w1"})

	if len(store.Snapshot("w1").Shapes) != 0 {
		t.Error("Stale edit from a dropped client must not mutate the board")
	}
	if hub.GetRoomCount() != 0 {
		t.Error("Stale join must not re-add a dropped client to a room")
	}
	if hub.GetClientCount() != 0 {
		t.Error("Dropped client must stay dropped")
	}
}

type countingGate struct {
	calls int
	allow bool
}

func (g *countingGate) IsMember(string, string) bool {
	g.calls++
	return g.allow
}

func TestMembershipResolvedAtJoin(t *testing.T) {
	store := board.NewStore()
	gate := &countingGate{allow: true}
	hub := NewHub(store, presence.NewRegistry(), gate, nil)

	a := newTestClient(hub, "ua", "Ada")
	hub.clients[a] = true
	hub.registry.Connect(a.user.ID, a.user.Name, a.sessionID)

	dispatchEvent(t, hub, a, protocol.EventJoin, protocol.JoinPayload{WorkspaceID: "w1"})
	if gate.calls != 1 {
		t.Fatalf("Join should consult the gate once, saw %d calls", gate.calls)
	}

	dispatchEvent(t, hub, a, protocol.EventShape, protocol.ShapePayload{
		WorkspaceID: "w1",
		Shape:       &board.Shape{ID: "s1", Tool: "rectangle"},
	})
	dispatchEvent(t, hub, a, protocol.EventCursor, protocol.CursorPayload{WorkspaceID: "w1", X: 1, Y: 2})

	if gate.calls != 1 {
		t.Errorf("Edits after join should not query the gate again, saw %d calls", gate.calls)
	}
	if len(store.Snapshot("w1").Shapes) != 1 {
		t.Error("Edit in the joined workspace should apply")
	}

	// A workspace never joined stays off limits even for a member.
	dispatchEvent(t, hub, a, protocol.EventShape, protocol.ShapePayload{
		WorkspaceID: "w2",
		Shape:       &board.Shape{ID: "s2", Tool: "rectangle"},
	})
	if len(store.Snapshot("w2").Shapes) != 0 {
		t.Error("Edit to an unjoined workspace must be dropped")
	}
}

func TestCursorDeltaGoesToOthers(t *testing.T) {
	hub, _ := newTestHub(nil)

	a := newTestClient(hub, "ua", "Ada")
	b := newTestClient(hub, "ub", "Bob")
	joinWorkspace(hub, a, "w1")
	joinWorkspace(hub, b, "w1")
	drain(t, a)
	drain(t, b)

	send(hub, a, protocol.EventCursor, protocol.CursorPayload{WorkspaceID: "w1", X: 12, Y: 34})
	time.Sleep(settle)

	if len(eventsOf(drain(t, a), protocol.EventCursors)) != 0 {
		t.Error("Sender should not get its own cursor delta")
	}

	deltas := eventsOf(drain(t, b), protocol.EventCursors)
	if len(deltas) != 1 {
		t.Fatalf("Expected 1 cursor delta for B, got %d", len(deltas))
	}
	var p protocol.CursorsPayload
	json.Unmarshal(deltas[0].Data, &p)
	if len(p.Cursors) != 1 || p.Cursors["ua"] == nil || p.Cursors["ua"].X != 12 {
		t.Errorf("Delta should carry only Ada's sample, got %+v", p.Cursors)
	}
}

func TestDisconnectSweepsPresence(t *testing.T) {
	hub, _ := newTestHub(nil)

	a := newTestClient(hub, "ua", "Ada")
	b := newTestClient(hub, "ub", "Bob")
	joinWorkspace(hub, a, "w1")
	joinWorkspace(hub, b, "w1")

	send(hub, a, protocol.EventCursor, protocol.CursorPayload{WorkspaceID: "w1", X: 1, Y: 2})
	send(hub, a, protocol.EventInteract, protocol.InteractPayload{WorkspaceID: "w1", Tool: "pen"})
	time.Sleep(settle)
	drain(t, b)

	hub.unregister <- a
	time.Sleep(settle)

	envs := drain(t, b)

	deltas := eventsOf(envs, protocol.EventCursors)
	if len(deltas) != 1 {
		t.Fatalf("Expected 1 cursor removal, got %d", len(deltas))
	}
	var cp protocol.CursorsPayload
	json.Unmarshal(deltas[0].Data, &cp)
	if cur, ok := cp.Cursors["ua"]; !ok || cur != nil {
		t.Errorf("Removal should be a null entry for ua, got %+v", cp.Cursors)
	}

	activities := eventsOf(envs, protocol.EventActivity)
	if len(activities) != 1 {
		t.Fatalf("Expected 1 activity broadcast, got %d", len(activities))
	}
	var ap protocol.ActivityPayload
	json.Unmarshal(activities[0].Data, &ap)
	if _, ok := ap.ActiveUsers["ua"]; ok {
		t.Error("Ada should be gone from the activity map")
	}

	if len(eventsOf(envs, protocol.EventPresence)) == 0 {
		t.Error("Disconnect should refresh the presence list")
	}
}

func TestPresenceOnRegister(t *testing.T) {
	hub, _ := newTestHub(nil)

	a := newTestClient(hub, "ua", "Ada")
	hub.register <- a
	time.Sleep(settle)

	presences := eventsOf(drain(t, a), protocol.EventPresence)
	if len(presences) != 1 {
		t.Fatalf("Expected 1 presence event, got %d", len(presences))
	}

	var list []presence.OnlineUser
	json.Unmarshal(presences[0].Data, &list)
	if len(list) != 1 || list[0].ID != "ua" {
		t.Errorf("Presence list should contain Ada, got %+v", list)
	}
}

func TestHubCounts(t *testing.T) {
	hub, _ := newTestHub(nil)

	if hub.GetClientCount() != 0 || hub.GetRoomCount() != 0 {
		t.Fatal("Fresh hub should be empty")
	}

	a := newTestClient(hub, "ua", "Ada")
	joinWorkspace(hub, a, "w1")

	if hub.GetClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.GetClientCount())
	}
	if hub.GetRoomCount() != 1 {
		t.Errorf("Expected 1 room, got %d", hub.GetRoomCount())
	}
	if hub.GetActiveRooms()["w1"] != 1 {
		t.Errorf("Expected 1 member in w1, got %d", hub.GetActiveRooms()["w1"])
	}

	hub.unregister <- a
	time.Sleep(settle)

	if hub.GetRoomCount() != 0 {
		t.Error("Empty room should be dropped")
	}
}
