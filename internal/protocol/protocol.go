package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tandemhq/tandem/backend/internal/board"
)

// Event names shared with the canvas clients.
const (
	// Inbound
	EventJoin      = "whiteboard:join"
	EventLine      = "whiteboard:line"
	EventShape     = "whiteboard:shape"
	EventText      = "whiteboard:text"
	EventErase     = "whiteboard:erase"
	EventTransform = "whiteboard:transform"
	EventClear     = "whiteboard:clear"
	EventCursor    = "whiteboard:cursor"
	EventActive    = "whiteboard:active"
	EventInteract  = "whiteboard:interact"
	EventUndo      = "whiteboard:undo"
	EventRedo      = "whiteboard:redo"

	// Outbound (edit events are echoed under their inbound names)
	EventInit     = "whiteboard:init"
	EventCursors  = "whiteboard:cursors"
	EventActivity = "whiteboard:activity"
	EventPresence = "presence"
)

// Every frame on the wire is one envelope: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw frame into an envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("missing event name")
	}
	return env, nil
}

// Encode builds a wire frame for the given event and payload.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Inbound payloads.

type JoinPayload struct {
	WorkspaceID string `json:"workspaceId"`
}

type LinePayload struct {
	WorkspaceID string        `json:"workspaceId"`
	Line        *board.Stroke `json:"line"`
}

type ShapePayload struct {
	WorkspaceID string       `json:"workspaceId"`
	Shape       *board.Shape `json:"shape"`
}

type TextPayload struct {
	WorkspaceID string      `json:"workspaceId"`
	Text        *board.Note `json:"text"`
}

// Radius is a pointer so an absent field can fall back to the default.
type ErasePayload struct {
	WorkspaceID string   `json:"workspaceId"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Radius      *float64 `json:"radius,omitempty"`
}

// Updated is kept raw: its "type" field decides whether it decodes as a
// whole shape or as a note patch.
type TransformPayload struct {
	WorkspaceID string          `json:"workspaceId"`
	Updated     json.RawMessage `json:"updated"`
}

// The discriminator peeked out of a transform's updated object.
type TransformTarget struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ClearPayload struct {
	WorkspaceID string `json:"workspaceId"`
}

type CursorPayload struct {
	WorkspaceID string  `json:"workspaceId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

type ActivePayload struct {
	WorkspaceID string `json:"workspaceId"`
	Active      bool   `json:"active"`
	Tool        string `json:"tool,omitempty"`
}

type InteractPayload struct {
	WorkspaceID string `json:"workspaceId"`
	Tool        string `json:"tool"`
}

type UndoPayload struct {
	WorkspaceID string `json:"workspaceId"`
}

// Outbound payloads.

type InitPayload struct {
	WorkspaceID string         `json:"workspaceId"`
	Lines       []board.Stroke `json:"lines"`
	Shapes      []board.Shape  `json:"shapes"`
	Texts       []board.Note   `json:"texts"`
}

type EraseBroadcast struct {
	WorkspaceID string  `json:"workspaceId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"radius"`
}

type TransformBroadcast struct {
	WorkspaceID string          `json:"workspaceId"`
	Updated     json.RawMessage `json:"updated"`
}

// A nil cursor entry tells receivers to drop that user's cursor.
type CursorsPayload struct {
	WorkspaceID string                   `json:"workspaceId"`
	Cursors     map[string]*board.Cursor `json:"cursors"`
}

type ActivityPayload struct {
	WorkspaceID string                    `json:"workspaceId"`
	ActiveUsers map[string]board.Activity `json:"activeUsers"`
}

// InitFrom wraps a board snapshot for the init broadcast.
func InitFrom(workspaceID string, snap board.Snapshot) InitPayload {
	return InitPayload{
		WorkspaceID: workspaceID,
		Lines:       snap.Strokes,
		Shapes:      snap.Shapes,
		Texts:       snap.Notes,
	}
}
