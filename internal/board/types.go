package board

// Drawable primitives for one workspace whiteboard. Field names match the
// wire format the canvas clients use.

// A freehand pen or highlighter stroke. Points is a flat [x0, y0, x1, y1, ...]
// sequence, so its length is always even.
type Stroke struct {
	ID          string    `json:"id"`
	Points      []float64 `json:"points"`
	Tool        string    `json:"tool"` // "pen" or "highlighter"
	Color       string    `json:"color"`
	StrokeWidth float64   `json:"strokeWidth"`
}

// A rectangle, circle or arrow anchored at (X, Y). Width/Height may be
// negative while the client is mid-drag.
type Shape struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Tool        string  `json:"tool"` // "rectangle", "circle" or "arrow"
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// A plain text label or sticky note.
type Note struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text"`
	Tool     string  `json:"tool"` // "text" or "sticky"
	Color    string  `json:"color"`
	FontSize float64 `json:"fontSize"`
}

// A partial note update. Nil fields are left untouched when the patch is
// applied, matching the client's object-spread transform semantics.
type NotePatch struct {
	ID       string   `json:"id"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Text     *string  `json:"text,omitempty"`
	Tool     *string  `json:"tool,omitempty"`
	Color    *string  `json:"color,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

// The parameters of one eraser pass.
type ErasePoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

type ActionType string

const (
	ActionAddStroke      ActionType = "add_line"
	ActionAddShape       ActionType = "add_shape"
	ActionAddNote        ActionType = "add_text"
	ActionTransformShape ActionType = "transform_shape"
	ActionTransformNote  ActionType = "transform_text"
	ActionErase          ActionType = "erase"
	ActionClear          ActionType = "clear"
)

// One logged edit. Exactly one payload pointer is set, depending on Type;
// Clear carries none. The log of these is the sole input to Rebuild.
type Action struct {
	Type   ActionType  `json:"type"`
	User   string      `json:"user"`
	Stroke *Stroke     `json:"stroke,omitempty"`
	Shape  *Shape      `json:"shape,omitempty"`
	Note   *Note       `json:"note,omitempty"`
	Patch  *NotePatch  `json:"patch,omitempty"`
	Erase  *ErasePoint `json:"erase,omitempty"`
}

// The latest known pointer position for one user on one board. Ephemeral:
// never logged, never replayed.
type Cursor struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
	TS   int64   `json:"ts"`
}

// Presence info for a user currently interacting with a board.
type Activity struct {
	Name         string `json:"name"`
	LastActiveAt int64  `json:"lastActiveAt"`
	Tool         string `json:"tool,omitempty"`
}

// A point-in-time copy of a board's drawable collections. This is what new
// joiners receive and what the snapshot store persists; the action log is
// deliberately absent.
type Snapshot struct {
	Strokes []Stroke `json:"lines"`
	Shapes  []Shape  `json:"shapes"`
	Notes   []Note   `json:"texts"`
}
