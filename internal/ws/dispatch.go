package ws

import (
	"encoding/json"

	"github.com/tandemhq/tandem/backend/internal/board"
	"github.com/tandemhq/tandem/backend/internal/protocol"
)

// dispatch handles one inbound event start to finish: decode, gate check,
// board mutation, fan-out. Events are fire-and-forget; anything malformed
// or unauthorized is dropped without a reply so the sender can't probe
// workspace membership through error responses.
func (h *Hub) dispatch(c *Client, env protocol.Envelope) {
	// The read pump can queue events before its connection error surfaces,
	// so a disconnect may be handled ahead of them. By then the client's
	// send channel is closed; dispatching a stale event would re-add the
	// dead client to a room or panic on the closed channel.
	h.mu.RLock()
	live := h.clients[c]
	h.mu.RUnlock()
	if !live {
		return
	}

	switch env.Event {
	case protocol.EventJoin:
		h.onJoin(c, env.Data)
	case protocol.EventLine:
		h.onLine(c, env.Data)
	case protocol.EventShape:
		h.onShape(c, env.Data)
	case protocol.EventText:
		h.onText(c, env.Data)
	case protocol.EventErase:
		h.onErase(c, env.Data)
	case protocol.EventTransform:
		h.onTransform(c, env.Data)
	case protocol.EventClear:
		h.onClear(c, env.Data)
	case protocol.EventCursor:
		h.onCursor(c, env.Data)
	case protocol.EventActive:
		h.onActive(c, env.Data)
	case protocol.EventInteract:
		h.onInteract(c, env.Data)
	case protocol.EventUndo:
		h.onUndo(c, env.Data)
	case protocol.EventRedo:
		h.onRedo(c, env.Data)
	}
}

// allowed applies the drop rule shared by every post-join handler: the
// actor must have joined the workspace, which is where membership was
// verified. Checking the joined set instead of the gate keeps database
// lookups out of the per-edit path inside the run loop.
func (h *Hub) allowed(c *Client, workspaceID string) bool {
	return workspaceID != "" && c.rooms[workspaceID]
}

func (h *Hub) onJoin(c *Client, data json.RawMessage) {
	var p protocol.JoinPayload
	if json.Unmarshal(data, &p) != nil || p.WorkspaceID == "" {
		return
	}
	if !h.gate.IsMember(p.WorkspaceID, c.user.ID) {
		return
	}

	h.joinRoom(p.WorkspaceID, c)

	h.emitTo(c, protocol.EventInit, protocol.InitFrom(p.WorkspaceID, h.store.Snapshot(p.WorkspaceID)))
	h.emitTo(c, protocol.EventActivity, protocol.ActivityPayload{
		WorkspaceID: p.WorkspaceID,
		ActiveUsers: h.store.ActiveUsers(p.WorkspaceID),
	})

	cursors := h.store.Cursors(p.WorkspaceID)
	out := make(map[string]*board.Cursor, len(cursors))
	for id := range cursors {
		cur := cursors[id]
		out[id] = &cur
	}
	h.emitTo(c, protocol.EventCursors, protocol.CursorsPayload{WorkspaceID: p.WorkspaceID, Cursors: out})
}

func (h *Hub) onLine(c *Client, data json.RawMessage) {
	var p protocol.LinePayload
	if json.Unmarshal(data, &p) != nil || p.Line == nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	h.store.Apply(p.WorkspaceID, board.Action{Type: board.ActionAddStroke, User: c.user.ID, Stroke: p.Line})
	h.emitRoom(p.WorkspaceID, protocol.EventLine, p, c)
}

func (h *Hub) onShape(c *Client, data json.RawMessage) {
	var p protocol.ShapePayload
	if json.Unmarshal(data, &p) != nil || p.Shape == nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	h.store.Apply(p.WorkspaceID, board.Action{Type: board.ActionAddShape, User: c.user.ID, Shape: p.Shape})
	h.emitRoom(p.WorkspaceID, protocol.EventShape, p, c)
}

func (h *Hub) onText(c *Client, data json.RawMessage) {
	var p protocol.TextPayload
	if json.Unmarshal(data, &p) != nil || p.Text == nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	h.store.Apply(p.WorkspaceID, board.Action{Type: board.ActionAddNote, User: c.user.ID, Note: p.Text})
	h.emitRoom(p.WorkspaceID, protocol.EventText, p, c)
}

func (h *Hub) onErase(c *Client, data json.RawMessage) {
	var p protocol.ErasePayload
	if json.Unmarshal(data, &p) != nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	radius := float64(board.DefaultEraseRadius)
	if p.Radius != nil {
		radius = *p.Radius
	}

	erase := board.ErasePoint{X: p.X, Y: p.Y, Radius: radius}
	h.store.Apply(p.WorkspaceID, board.Action{Type: board.ActionErase, User: c.user.ID, Erase: &erase})

	// Receivers re-run the same hit predicate locally, so only the raw
	// parameters go out. Everyone gets it, the eraser included.
	h.emitRoom(p.WorkspaceID, protocol.EventErase, protocol.EraseBroadcast{
		WorkspaceID: p.WorkspaceID,
		X:           p.X,
		Y:           p.Y,
		Radius:      radius,
	}, nil)
}

func (h *Hub) onTransform(c *Client, data json.RawMessage) {
	var p protocol.TransformPayload
	if json.Unmarshal(data, &p) != nil || len(p.Updated) == 0 || !h.allowed(c, p.WorkspaceID) {
		return
	}

	var target protocol.TransformTarget
	if json.Unmarshal(p.Updated, &target) != nil || target.ID == "" {
		return
	}

	switch target.Type {
	case "shape":
		var shape board.Shape
		if json.Unmarshal(p.Updated, &shape) != nil {
			return
		}
		h.store.Apply(p.WorkspaceID, board.Action{Type: board.ActionTransformShape, User: c.user.ID, Shape: &shape})
	case "text":
		var patch board.NotePatch
		if json.Unmarshal(p.Updated, &patch) != nil {
			return
		}
		h.store.Apply(p.WorkspaceID, board.Action{Type: board.ActionTransformNote, User: c.user.ID, Patch: &patch})
	default:
		return
	}

	h.emitRoom(p.WorkspaceID, protocol.EventTransform, protocol.TransformBroadcast{
		WorkspaceID: p.WorkspaceID,
		Updated:     p.Updated,
	}, c)
}

func (h *Hub) onClear(c *Client, data json.RawMessage) {
	var p protocol.ClearPayload
	if json.Unmarshal(data, &p) != nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	h.store.Apply(p.WorkspaceID, board.Action{Type: board.ActionClear, User: c.user.ID})
	h.emitRoom(p.WorkspaceID, protocol.EventClear, p, nil)
}

func (h *Hub) onCursor(c *Client, data json.RawMessage) {
	var p protocol.CursorPayload
	if json.Unmarshal(data, &p) != nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	sample := h.store.SetCursor(p.WorkspaceID, c.user.ID, c.user.Name, p.X, p.Y)
	h.emitRoom(p.WorkspaceID, protocol.EventCursors, protocol.CursorsPayload{
		WorkspaceID: p.WorkspaceID,
		Cursors:     map[string]*board.Cursor{c.user.ID: &sample},
	}, c)
}

func (h *Hub) onActive(c *Client, data json.RawMessage) {
	var p protocol.ActivePayload
	if json.Unmarshal(data, &p) != nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	active := h.store.SetActive(p.WorkspaceID, c.user.ID, c.user.Name, p.Active, p.Tool)
	h.emitRoom(p.WorkspaceID, protocol.EventActivity, protocol.ActivityPayload{
		WorkspaceID: p.WorkspaceID,
		ActiveUsers: active,
	}, nil)
}

func (h *Hub) onInteract(c *Client, data json.RawMessage) {
	var p protocol.InteractPayload
	if json.Unmarshal(data, &p) != nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	active := h.store.SetActive(p.WorkspaceID, c.user.ID, c.user.Name, true, p.Tool)
	h.emitRoom(p.WorkspaceID, protocol.EventActivity, protocol.ActivityPayload{
		WorkspaceID: p.WorkspaceID,
		ActiveUsers: active,
	}, nil)
}

func (h *Hub) onUndo(c *Client, data json.RawMessage) {
	var p protocol.UndoPayload
	if json.Unmarshal(data, &p) != nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	snap, ok := h.store.Undo(p.WorkspaceID)
	if !ok {
		return
	}
	// Full snapshot to the whole room, sender included: convergence beats
	// bandwidth for history jumps.
	h.emitRoom(p.WorkspaceID, protocol.EventInit, protocol.InitFrom(p.WorkspaceID, snap), nil)
}

func (h *Hub) onRedo(c *Client, data json.RawMessage) {
	var p protocol.UndoPayload
	if json.Unmarshal(data, &p) != nil || !h.allowed(c, p.WorkspaceID) {
		return
	}

	snap, ok := h.store.Redo(p.WorkspaceID)
	if !ok {
		return
	}
	h.emitRoom(p.WorkspaceID, protocol.EventInit, protocol.InitFrom(p.WorkspaceID, snap), nil)
}
