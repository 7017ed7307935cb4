package board

import "log"

// Rebuild replays an action log from empty collections and returns the
// resulting board contents. It is pure: the same log always produces the
// same snapshot, and nothing outside the returned value is touched. Undo
// and redo lean on this to rematerialize state after the log is edited.
func Rebuild(actions []Action) Snapshot {
	var (
		strokes []Stroke
		shapes  []Shape
		notes   []Note
	)

	for i := range actions {
		a := &actions[i]
		switch a.Type {
		case ActionAddStroke:
			if a.Stroke != nil {
				strokes = append(strokes, *a.Stroke)
			}
		case ActionAddShape:
			if a.Shape != nil {
				shapes = append(shapes, *a.Shape)
			}
		case ActionAddNote:
			if a.Note != nil {
				notes = append(notes, *a.Note)
			}
		case ActionTransformShape:
			if a.Shape == nil {
				continue
			}
			// Whole-value replacement. The target may have been erased by
			// an earlier action, in which case this is a no-op.
			for j := range shapes {
				if shapes[j].ID == a.Shape.ID {
					shapes[j] = *a.Shape
				}
			}
		case ActionTransformNote:
			if a.Patch == nil {
				continue
			}
			for j := range notes {
				if notes[j].ID == a.Patch.ID {
					mergeNote(&notes[j], a.Patch)
				}
			}
		case ActionErase:
			if a.Erase != nil {
				strokes, shapes, notes = applyErase(strokes, shapes, notes, *a.Erase)
			}
		case ActionClear:
			strokes, shapes, notes = nil, nil, nil
		default:
			// A malformed entry shouldn't take the whole board down with it.
			log.Printf("replay: skipping unknown action type %q", a.Type)
		}
	}

	return Snapshot{Strokes: strokes, Shapes: shapes, Notes: notes}
}

// Copies the patch's set fields onto the note.
func mergeNote(n *Note, p *NotePatch) {
	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
	if p.Text != nil {
		n.Text = *p.Text
	}
	if p.Tool != nil {
		n.Tool = *p.Tool
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
	if p.FontSize != nil {
		n.FontSize = *p.FontSize
	}
}
