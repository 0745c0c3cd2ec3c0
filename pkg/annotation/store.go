package annotation

// imageState owns every annotation artifact for one image index. States are
// independent: operations on one index never touch another.
type imageState struct {
	strokes []Stroke
	boxes   []Box
	undo    []HistoryEntry
	redo    []HistoryEntry
	label   string
}

// Store is an arena of per-image annotation states, indexed by the image's
// position within a case. Slots are created lazily on first touch. The
// store assumes a single active editor per image index.
type Store struct {
	slots []*imageState
}

// NewStore creates a Store with room for maxImages image indices
func NewStore(maxImages int) *Store {
	if maxImages < 1 {
		maxImages = 1
	}
	return &Store{
		slots: make([]*imageState, maxImages),
	}
}

// MaxImages returns the arena capacity
func (s *Store) MaxImages() int {
	return len(s.slots)
}

// state borrows the slot for idx, creating it on first touch. Out-of-range
// indices return nil and every public operation treats that as a no-op.
func (s *Store) state(idx int) *imageState {
	if idx < 0 || idx >= len(s.slots) {
		return nil
	}
	if s.slots[idx] == nil {
		s.slots[idx] = &imageState{}
	}
	return s.slots[idx]
}

// PendingStroke is a live handle to a stroke being drawn. It has no history
// effect until committed.
type PendingStroke struct {
	imageIndex int
	stroke     Stroke
	committed  bool
}

// Append extends the in-progress stroke with one more point
func (p *PendingStroke) Append(pt Point) {
	if p == nil || p.committed {
		return
	}
	p.stroke.Points = append(p.stroke.Points, pt)
}

// StartStroke begins a new uncommitted stroke at the given point. Returns
// nil for an out-of-range image index.
func (s *Store) StartStroke(idx int, pt Point, color int, size float64, eraser bool) *PendingStroke {
	if s.state(idx) == nil {
		return nil
	}
	return &PendingStroke{
		imageIndex: idx,
		stroke: Stroke{
			Points: []Point{pt},
			Color:  color,
			Size:   size,
			Eraser: eraser,
		},
	}
}

// CommitStroke freezes the pending stroke, appends it to the image's stroke
// list and pushes the add-event onto the undo stack. Any redo entries are
// discarded: a new action invalidates redo.
func (s *Store) CommitStroke(p *PendingStroke) bool {
	if p == nil || p.committed {
		return false
	}
	st := s.state(p.imageIndex)
	if st == nil {
		return false
	}
	p.committed = true
	st.strokes = append(st.strokes, p.stroke)
	st.undo = append(st.undo, strokeEntry(p.stroke))
	st.redo = nil
	return true
}

// AddBox commits a bounding box in a single shot
func (s *Store) AddBox(idx int, b Box) bool {
	st := s.state(idx)
	if st == nil {
		return false
	}
	st.boxes = append(st.boxes, b)
	st.undo = append(st.undo, boxEntry(b))
	st.redo = nil
	return true
}

// Undo removes the most recently committed stroke or box from the image and
// parks the entry on the redo stack. Returns false on an empty undo stack.
func (s *Store) Undo(idx int) bool {
	st := s.state(idx)
	if st == nil || len(st.undo) == 0 {
		return false
	}

	entry := st.undo[len(st.undo)-1]
	st.undo = st.undo[:len(st.undo)-1]

	// The newest entry of a kind always sits at the end of that kind's
	// collection, so removal is a pop.
	switch entry.Kind {
	case EntryStroke:
		if n := len(st.strokes); n > 0 {
			st.strokes = st.strokes[:n-1]
		}
	case EntryBox:
		if n := len(st.boxes); n > 0 {
			st.boxes = st.boxes[:n-1]
		}
	}

	st.redo = append(st.redo, entry)
	return true
}

// Redo re-applies the most recently undone entry, appending it at the end
// of its collection. Returns false on an empty redo stack.
func (s *Store) Redo(idx int) bool {
	st := s.state(idx)
	if st == nil || len(st.redo) == 0 {
		return false
	}

	entry := st.redo[len(st.redo)-1]
	st.redo = st.redo[:len(st.redo)-1]

	switch entry.Kind {
	case EntryStroke:
		st.strokes = append(st.strokes, entry.Stroke())
	case EntryBox:
		st.boxes = append(st.boxes, entry.Box())
	}

	st.undo = append(st.undo, entry)
	return true
}

// ClearImage empties strokes, boxes and both history stacks for one image.
// This is not undoable. Other image indices are untouched.
func (s *Store) ClearImage(idx int) {
	st := s.state(idx)
	if st == nil {
		return
	}
	st.strokes = nil
	st.boxes = nil
	st.undo = nil
	st.redo = nil
}

// HitTest returns the index of the topmost (last-added) box containing the
// point, or false when no box does.
func (s *Store) HitTest(idx int, pt Point) (int, bool) {
	st := s.state(idx)
	if st == nil {
		return 0, false
	}
	for i := len(st.boxes) - 1; i >= 0; i-- {
		if st.boxes[i].Contains(pt) {
			return i, true
		}
	}
	return 0, false
}

// Strokes returns a copy of the committed strokes for the image
func (s *Store) Strokes(idx int) []Stroke {
	st := s.state(idx)
	if st == nil {
		return nil
	}
	out := make([]Stroke, len(st.strokes))
	copy(out, st.strokes)
	return out
}

// Boxes returns a copy of the committed boxes for the image
func (s *Store) Boxes(idx int) []Box {
	st := s.state(idx)
	if st == nil {
		return nil
	}
	out := make([]Box, len(st.boxes))
	copy(out, st.boxes)
	return out
}

// UndoDepth returns the number of undoable entries for the image
func (s *Store) UndoDepth(idx int) int {
	st := s.state(idx)
	if st == nil {
		return 0
	}
	return len(st.undo)
}

// RedoDepth returns the number of redoable entries for the image
func (s *Store) RedoDepth(idx int) int {
	st := s.state(idx)
	if st == nil {
		return 0
	}
	return len(st.redo)
}

// SetLabel attaches a class label to the image's annotation set. The label
// must come from the closed vocabulary.
func (s *Store) SetLabel(idx int, label string) bool {
	st := s.state(idx)
	if st == nil || !ValidLabel(label) {
		return false
	}
	st.label = label
	return true
}

// Label returns the class label attached to the image, if any
func (s *Store) Label(idx int) string {
	st := s.state(idx)
	if st == nil {
		return ""
	}
	return st.label
}
