package annotation

// Snapshot is the serialized form of one image's annotation set, in the
// shape the submission collaborator expects.
type Snapshot struct {
	Strokes []StrokePayload `json:"strokes"`
	Boxes   []BoxPayload    `json:"boxes"`
}

// StrokePayload is the wire form of a committed stroke
type StrokePayload struct {
	Points   [][2]float64 `json:"points"`
	Color    int          `json:"color"`
	Size     float64      `json:"size"`
	IsEraser bool         `json:"isEraser"`
}

// BoxPayload is the wire form of a committed bounding box
type BoxPayload struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Snapshot serializes the current strokes and boxes for one image. The
// result shares nothing with the live collections.
func (s *Store) Snapshot(idx int) Snapshot {
	st := s.state(idx)
	snap := Snapshot{
		Strokes: []StrokePayload{},
		Boxes:   []BoxPayload{},
	}
	if st == nil {
		return snap
	}

	for _, stroke := range st.strokes {
		points := make([][2]float64, len(stroke.Points))
		for i, p := range stroke.Points {
			points[i] = [2]float64{p.X, p.Y}
		}
		snap.Strokes = append(snap.Strokes, StrokePayload{
			Points:   points,
			Color:    stroke.Color,
			Size:     stroke.Size,
			IsEraser: stroke.Eraser,
		})
	}

	for _, b := range st.boxes {
		snap.Boxes = append(snap.Boxes, BoxPayload{
			Left:   b.Left,
			Top:    b.Top,
			Width:  b.Width,
			Height: b.Height,
		})
	}

	return snap
}
