package board

import (
	"sync"
	"time"
)

// One workspace's whiteboard. All mutation goes through Store methods; the
// drawable collections are mirrored by the action log so that Rebuild over
// the log always reproduces them exactly. Cursors and active users are
// ephemeral: they live outside the log and are untouched by undo/redo.
type Board struct {
	strokes []Stroke
	shapes  []Shape
	notes   []Note

	actions []Action // append-only until truncated by undo
	undone  []Action // redo stack; cleared by any new edit

	cursors map[string]Cursor
	active  map[string]Activity

	rev uint64 // bumped on every logged mutation
}

// Store holds every workspace board in the process. Boards are created
// lazily on first reference and live until Delete or process exit.
//
// The dispatcher's run loop is the only writer of drawable state, which is
// what makes each edit atomic with respect to its broadcast; the lock exists
// so the REST surface and the snapshot service can take consistent reads
// from their own goroutines.
type Store struct {
	mu     sync.RWMutex
	boards map[string]*Board
}

func NewStore() *Store {
	return &Store{boards: make(map[string]*Board)}
}

func (s *Store) ensure(workspaceID string) *Board {
	b, ok := s.boards[workspaceID]
	if !ok {
		b = &Board{
			cursors: make(map[string]Cursor),
			active:  make(map[string]Activity),
		}
		s.boards[workspaceID] = b
	}
	return b
}

// Apply mutates the board per the action's type, appends the action to the
// log and clears the redo stack. Transform actions follow replay semantics:
// a missing target is a silent no-op.
func (s *Store) Apply(workspaceID string, a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensure(workspaceID)

	switch a.Type {
	case ActionAddStroke:
		if a.Stroke != nil {
			b.strokes = append(b.strokes, *a.Stroke)
		}
	case ActionAddShape:
		if a.Shape != nil {
			b.shapes = append(b.shapes, *a.Shape)
		}
	case ActionAddNote:
		if a.Note != nil {
			b.notes = append(b.notes, *a.Note)
		}
	case ActionTransformShape:
		if a.Shape != nil {
			for i := range b.shapes {
				if b.shapes[i].ID == a.Shape.ID {
					b.shapes[i] = *a.Shape
				}
			}
		}
	case ActionTransformNote:
		if a.Patch != nil {
			for i := range b.notes {
				if b.notes[i].ID == a.Patch.ID {
					mergeNote(&b.notes[i], a.Patch)
				}
			}
		}
	case ActionErase:
		if a.Erase != nil {
			b.strokes, b.shapes, b.notes = applyErase(b.strokes, b.shapes, b.notes, *a.Erase)
		}
	case ActionClear:
		b.strokes, b.shapes, b.notes = nil, nil, nil
	}

	b.actions = append(b.actions, a)
	b.undone = nil
	b.rev++
}

// Undo pops the newest action onto the redo stack and rematerializes the
// board from what remains of the log. Returns false when there is nothing
// to undo.
func (s *Store) Undo(workspaceID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensure(workspaceID)
	if len(b.actions) == 0 {
		return Snapshot{}, false
	}

	last := b.actions[len(b.actions)-1]
	b.actions = b.actions[:len(b.actions)-1]
	b.undone = append(b.undone, last)

	snap := Rebuild(b.actions)
	b.strokes, b.shapes, b.notes = snap.Strokes, snap.Shapes, snap.Notes
	b.rev++

	return copySnapshot(snap), true
}

// Redo moves the newest undone action back onto the log and rematerializes.
// Returns false when the redo stack is empty.
func (s *Store) Redo(workspaceID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensure(workspaceID)
	if len(b.undone) == 0 {
		return Snapshot{}, false
	}

	last := b.undone[len(b.undone)-1]
	b.undone = b.undone[:len(b.undone)-1]
	b.actions = append(b.actions, last)

	snap := Rebuild(b.actions)
	b.strokes, b.shapes, b.notes = snap.Strokes, snap.Shapes, snap.Notes
	b.rev++

	return copySnapshot(snap), true
}

// Snapshot returns a deep copy of the board's drawable collections.
func (s *Store) Snapshot(workspaceID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensure(workspaceID)
	return copySnapshot(Snapshot{Strokes: b.strokes, Shapes: b.shapes, Notes: b.notes})
}

// Restore seeds a board from a persisted snapshot by synthesizing one add
// action per element. Going through the log rather than assigning the
// collections directly keeps the replay invariant intact, so undo works
// element-by-element across a restart.
func (s *Store) Restore(workspaceID string, snap Snapshot) {
	for i := range snap.Strokes {
		st := snap.Strokes[i]
		s.Apply(workspaceID, Action{Type: ActionAddStroke, Stroke: &st})
	}
	for i := range snap.Shapes {
		sh := snap.Shapes[i]
		s.Apply(workspaceID, Action{Type: ActionAddShape, Shape: &sh})
	}
	for i := range snap.Notes {
		n := snap.Notes[i]
		s.Apply(workspaceID, Action{Type: ActionAddNote, Note: &n})
	}
}

// SetCursor records the latest pointer sample for a user and returns the
// stored value. Latest wins; nothing is logged.
func (s *Store) SetCursor(workspaceID, userID, name string, x, y float64) Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensure(workspaceID)
	c := Cursor{X: x, Y: y, Name: name, TS: time.Now().UnixMilli()}
	b.cursors[userID] = c
	return c
}

// SetActive upserts (active) or removes (inactive) a user's activity entry
// and returns a copy of the full map for broadcast. Tool is optional.
func (s *Store) SetActive(workspaceID, userID, name string, active bool, tool string) map[string]Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensure(workspaceID)
	if active {
		b.active[userID] = Activity{Name: name, LastActiveAt: time.Now().UnixMilli(), Tool: tool}
	} else {
		delete(b.active, userID)
	}
	return copyActivity(b.active)
}

// Cursors returns a copy of the board's cursor map.
func (s *Store) Cursors(workspaceID string) map[string]Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensure(workspaceID)
	out := make(map[string]Cursor, len(b.cursors))
	for k, v := range b.cursors {
		out[k] = v
	}
	return out
}

// ActiveUsers returns a copy of the board's activity map.
func (s *Store) ActiveUsers(workspaceID string) map[string]Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyActivity(s.ensure(workspaceID).active)
}

// The presence state removed from one board by a user sweep.
type SweepEntry struct {
	WorkspaceID string
	HadCursor   bool
	HadActivity bool
	Active      map[string]Activity // post-removal copy, set when HadActivity
}

// SweepUser removes a departed user's cursor and activity entries from every
// board they touched. Keyed by user identity, not session: it runs only when
// the user's last connection drops. Returns one entry per affected board so
// the caller can broadcast the removals.
func (s *Store) SweepUser(userID string) []SweepEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []SweepEntry
	for wid, b := range s.boards {
		entry := SweepEntry{WorkspaceID: wid}
		if _, ok := b.cursors[userID]; ok {
			delete(b.cursors, userID)
			entry.HadCursor = true
		}
		if _, ok := b.active[userID]; ok {
			delete(b.active, userID)
			entry.HadActivity = true
			entry.Active = copyActivity(b.active)
		}
		if entry.HadCursor || entry.HadActivity {
			swept = append(swept, entry)
		}
	}
	return swept
}

// Delete drops a board entirely. The next reference recreates it empty.
func (s *Store) Delete(workspaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boards, workspaceID)
}

// WorkspaceIDs lists every board currently held in memory.
func (s *Store) WorkspaceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.boards))
	for wid := range s.boards {
		ids = append(ids, wid)
	}
	return ids
}

// Revision returns the board's logged-mutation counter, or 0 if the board
// does not exist. The snapshot service uses this to skip unchanged boards.
func (s *Store) Revision(workspaceID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.boards[workspaceID]; ok {
		return b.rev
	}
	return 0
}

// Counts returns the board's log and redo-stack depths for the stats surface.
func (s *Store) Counts(workspaceID string) (actions, undone int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.boards[workspaceID]; ok {
		return len(b.actions), len(b.undone)
	}
	return 0, 0
}

func copySnapshot(snap Snapshot) Snapshot {
	out := Snapshot{
		Strokes: make([]Stroke, len(snap.Strokes)),
		Shapes:  make([]Shape, len(snap.Shapes)),
		Notes:   make([]Note, len(snap.Notes)),
	}
	copy(out.Shapes, snap.Shapes)
	copy(out.Notes, snap.Notes)
	for i, st := range snap.Strokes {
		pts := make([]float64, len(st.Points))
		copy(pts, st.Points)
		st.Points = pts
		out.Strokes[i] = st
	}
	return out
}

func copyActivity(m map[string]Activity) map[string]Activity {
	out := make(map[string]Activity, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
