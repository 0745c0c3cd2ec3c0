package annotation

// EntryKind discriminates the two variants of a HistoryEntry
type EntryKind int

const (
	// EntryStroke marks an entry carrying a committed stroke
	EntryStroke EntryKind = iota
	// EntryBox marks an entry carrying a committed bounding box
	EntryBox
)

// HistoryEntry is one committed add-event for one image. It is a tagged
// union: exactly one payload is meaningful, selected by Kind. Entries move
// between the undo and redo stacks but are never rewritten.
type HistoryEntry struct {
	Kind   EntryKind
	stroke Stroke
	box    Box
}

func strokeEntry(s Stroke) HistoryEntry {
	return HistoryEntry{Kind: EntryStroke, stroke: s}
}

func boxEntry(b Box) HistoryEntry {
	return HistoryEntry{Kind: EntryBox, box: b}
}

// Stroke returns the stroke payload; valid only when Kind == EntryStroke
func (e HistoryEntry) Stroke() Stroke { return e.stroke }

// Box returns the box payload; valid only when Kind == EntryBox
func (e HistoryEntry) Box() Box { return e.box }
