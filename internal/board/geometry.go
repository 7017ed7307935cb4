package board

import "math"

// Radius applied when an erase request doesn't carry one.
const DefaultEraseRadius = 10

// Reports whether an eraser pass at (x, y) removes the stroke: true when any
// vertex lies strictly inside the radius. A vertex exactly on the boundary
// survives. Every client runs this same predicate locally, so the comparison
// operators here are part of the wire contract and must not change.
func StrokeHit(s *Stroke, x, y, radius float64) bool {
	for i := 0; i+1 < len(s.Points); i += 2 {
		dx := s.Points[i] - x
		dy := s.Points[i+1] - y
		if math.Sqrt(dx*dx+dy*dy) < radius {
			return true
		}
	}
	return false
}

// Reports whether an anchor point survives an eraser pass at (x, y). Note the
// asymmetry with StrokeHit: an anchor exactly on the boundary is erased.
func anchorRetained(px, py, x, y, radius float64) bool {
	dx := px - x
	dy := py - y
	return math.Sqrt(dx*dx+dy*dy) > radius
}

// Reports whether the eraser removes the shape, judged by its anchor.
func ShapeHit(s *Shape, x, y, radius float64) bool {
	return !anchorRetained(s.X, s.Y, x, y, radius)
}

// Reports whether the eraser removes the note, judged by its anchor.
func NoteHit(n *Note, x, y, radius float64) bool {
	return !anchorRetained(n.X, n.Y, x, y, radius)
}

// Applies one eraser pass to the given collections and returns what remains.
func applyErase(strokes []Stroke, shapes []Shape, notes []Note, e ErasePoint) ([]Stroke, []Shape, []Note) {
	keptStrokes := strokes[:0]
	for i := range strokes {
		if !StrokeHit(&strokes[i], e.X, e.Y, e.Radius) {
			keptStrokes = append(keptStrokes, strokes[i])
		}
	}

	keptShapes := shapes[:0]
	for i := range shapes {
		if !ShapeHit(&shapes[i], e.X, e.Y, e.Radius) {
			keptShapes = append(keptShapes, shapes[i])
		}
	}

	keptNotes := notes[:0]
	for i := range notes {
		if !NoteHit(&notes[i], e.X, e.Y, e.Radius) {
			keptNotes = append(keptNotes, notes[i])
		}
	}

	return keptStrokes, keptShapes, keptNotes
}
