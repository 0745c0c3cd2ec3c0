package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func commitTestStroke(t *testing.T, store *Store, idx int, points ...Point) Stroke {
	t.Helper()
	require.NotEmpty(t, points)

	pen := store.StartStroke(idx, points[0], 0xFF0000, 4.5, false)
	require.NotNil(t, pen)
	for _, p := range points[1:] {
		pen.Append(p)
	}
	require.True(t, store.CommitStroke(pen))
	strokes := store.Strokes(idx)
	return strokes[len(strokes)-1]
}

func TestStartStrokeHasNoHistoryEffect(t *testing.T) {
	store := NewStore(8)

	pen := store.StartStroke(0, Point{X: 1, Y: 2}, 0x00FF00, 3, true)
	pen.Append(Point{X: 2, Y: 3})

	require.Empty(t, store.Strokes(0))
	require.Zero(t, store.UndoDepth(0))
}

func TestCommitStroke(t *testing.T) {
	store := NewStore(8)

	stroke := commitTestStroke(t, store, 0,
		Point{X: 1, Y: 1}, Point{X: 2, Y: 2}, Point{X: 3, Y: 4})

	require.Len(t, store.Strokes(0), 1)
	require.Equal(t, []Point{{1, 1}, {2, 2}, {3, 4}}, stroke.Points)
	require.Equal(t, 0xFF0000, stroke.Color)
	require.Equal(t, 4.5, stroke.Size)
	require.False(t, stroke.Eraser)
	require.Equal(t, 1, store.UndoDepth(0))
}

func TestCommitStrokeIsFinal(t *testing.T) {
	store := NewStore(8)

	pen := store.StartStroke(0, Point{X: 1, Y: 1}, 0, 1, false)
	require.True(t, store.CommitStroke(pen))

	// Neither a second commit nor a late append may change anything
	require.False(t, store.CommitStroke(pen))
	pen.Append(Point{X: 9, Y: 9})

	require.Len(t, store.Strokes(0), 1)
	require.Len(t, store.Strokes(0)[0].Points, 1)
}

func TestUndoRedoRestoresExactStroke(t *testing.T) {
	store := NewStore(8)
	committed := commitTestStroke(t, store, 0,
		Point{X: 10, Y: 20}, Point{X: 11, Y: 21})

	require.True(t, store.Undo(0))
	require.Empty(t, store.Strokes(0))

	require.True(t, store.Redo(0))
	strokes := store.Strokes(0)
	require.Len(t, strokes, 1)
	require.Equal(t, committed, strokes[0])
}

func TestUndoRedoBoxes(t *testing.T) {
	store := NewStore(8)
	box := Box{Left: 5, Top: 6, Width: 30, Height: 40}
	require.True(t, store.AddBox(0, box))

	require.True(t, store.Undo(0))
	require.Empty(t, store.Boxes(0))

	require.True(t, store.Redo(0))
	require.Equal(t, []Box{box}, store.Boxes(0))
}

func TestUndoInterleavedKinds(t *testing.T) {
	store := NewStore(8)
	commitTestStroke(t, store, 0, Point{X: 1, Y: 1})
	store.AddBox(0, Box{Left: 0, Top: 0, Width: 10, Height: 10})
	commitTestStroke(t, store, 0, Point{X: 2, Y: 2})

	// Undo pops in reverse commit order: stroke, box, stroke
	require.True(t, store.Undo(0))
	require.Len(t, store.Strokes(0), 1)
	require.Len(t, store.Boxes(0), 1)

	require.True(t, store.Undo(0))
	require.Len(t, store.Strokes(0), 1)
	require.Empty(t, store.Boxes(0))

	require.True(t, store.Undo(0))
	require.Empty(t, store.Strokes(0))

	require.False(t, store.Undo(0))
}

func TestNewCommitClearsRedo(t *testing.T) {
	store := NewStore(8)
	commitTestStroke(t, store, 0, Point{X: 1, Y: 1})
	require.True(t, store.Undo(0))
	require.Equal(t, 1, store.RedoDepth(0))

	// Any new action permanently discards the redo entry
	store.AddBox(0, Box{Left: 1, Top: 1, Width: 2, Height: 2})
	require.Zero(t, store.RedoDepth(0))
	require.False(t, store.Redo(0))
}

func TestHistoryUnderflowIsNoOp(t *testing.T) {
	store := NewStore(8)

	require.False(t, store.Undo(0))
	require.False(t, store.Redo(0))
	require.Empty(t, store.Strokes(0))
}

func TestClearImageIsolation(t *testing.T) {
	store := NewStore(8)
	for _, idx := range []int{0, 1, 2, 3} {
		commitTestStroke(t, store, idx, Point{X: float64(idx), Y: 0})
		store.AddBox(idx, Box{Left: float64(idx), Top: 0, Width: 5, Height: 5})
	}

	store.ClearImage(2)

	require.Empty(t, store.Strokes(2))
	require.Empty(t, store.Boxes(2))
	require.Zero(t, store.UndoDepth(2))
	require.Zero(t, store.RedoDepth(2))

	// Images 0, 1 and 3 are untouched
	for _, idx := range []int{0, 1, 3} {
		require.Len(t, store.Strokes(idx), 1, "image %d", idx)
		require.Len(t, store.Boxes(idx), 1, "image %d", idx)
		require.Equal(t, 2, store.UndoDepth(idx), "image %d", idx)
	}

	// Clearing is not undoable
	require.False(t, store.Undo(2))
}

func TestHitTestTopmost(t *testing.T) {
	store := NewStore(8)
	store.AddBox(0, Box{Left: 0, Top: 0, Width: 100, Height: 100})
	store.AddBox(0, Box{Left: 25, Top: 25, Width: 50, Height: 50})

	// Point inside both: the last-added box wins
	idx, ok := store.HitTest(0, Point{X: 50, Y: 50})
	require.True(t, ok)
	require.Equal(t, 1, idx)

	// Point inside only the first box
	idx, ok = store.HitTest(0, Point{X: 5, Y: 5})
	require.True(t, ok)
	require.Equal(t, 0, idx)

	// Point outside every box
	_, ok = store.HitTest(0, Point{X: 200, Y: 200})
	require.False(t, ok)
}

func TestOutOfRangeIndex(t *testing.T) {
	store := NewStore(4)

	require.Nil(t, store.StartStroke(4, Point{}, 0, 1, false))
	require.Nil(t, store.StartStroke(-1, Point{}, 0, 1, false))
	require.False(t, store.AddBox(10, Box{Width: 1, Height: 1}))
	require.False(t, store.Undo(10))
	require.False(t, store.Redo(-3))
	_, ok := store.HitTest(99, Point{})
	require.False(t, ok)
}

func TestLabels(t *testing.T) {
	store := NewStore(8)

	require.True(t, ValidLabel("melanoma"))
	require.False(t, ValidLabel("unknown_thing"))

	require.True(t, store.SetLabel(0, "nevus"))
	require.Equal(t, "nevus", store.Label(0))

	require.False(t, store.SetLabel(0, "not_a_class"))
	require.Equal(t, "nevus", store.Label(0))

	// Label is per image, not global
	require.Empty(t, store.Label(1))
}

func TestSnapshotSerialization(t *testing.T) {
	store := NewStore(8)
	commitTestStroke(t, store, 0, Point{X: 1, Y: 2}, Point{X: 3, Y: 4})
	store.AddBox(0, Box{Left: 10, Top: 20, Width: 30, Height: 40})

	snap := store.Snapshot(0)
	require.Len(t, snap.Strokes, 1)
	require.Equal(t, [][2]float64{{1, 2}, {3, 4}}, snap.Strokes[0].Points)
	require.Len(t, snap.Boxes, 1)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"strokes": [{"points": [[1,2],[3,4]], "color": 16711680, "size": 4.5, "isEraser": false}],
		"boxes": [{"left": 10, "top": 20, "width": 30, "height": 40}]
	}`, string(data))
}

func TestSnapshotEmptyImage(t *testing.T) {
	store := NewStore(8)

	snap := store.Snapshot(3)
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.JSONEq(t, `{"strokes": [], "boxes": []}`, string(data))
}

func TestSnapshotSharesNothing(t *testing.T) {
	store := NewStore(8)
	commitTestStroke(t, store, 0, Point{X: 1, Y: 1})

	snap := store.Snapshot(0)
	snap.Strokes[0].Points[0] = [2]float64{99, 99}

	require.Equal(t, Point{X: 1, Y: 1}, store.Strokes(0)[0].Points[0])
}
