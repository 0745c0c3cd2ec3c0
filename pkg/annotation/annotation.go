package annotation

// Point is a 2D coordinate in image-display space
type Point struct {
	X float64
	Y float64
}

// Stroke is a committed freehand mark: an ordered polyline with paint
// attributes. Eraser strokes clear pixels instead of painting them.
type Stroke struct {
	Points []Point
	Color  int
	Size   float64
	Eraser bool
}

// Box is a single bounding rectangle in image-display coordinates
type Box struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Contains reports whether p lies inside the box (edges inclusive)
func (b Box) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Left+b.Width &&
		p.Y >= b.Top && p.Y <= b.Top+b.Height
}

// Labels is the closed diagnosis vocabulary a saved annotation set may
// carry. The label applies to the whole image, not to individual marks.
var Labels = []string{
	"melanoma",
	"nevus",
	"basal_cell_carcinoma",
	"actinic_keratosis",
	"benign_keratosis",
	"dermatofibroma",
	"vascular_lesion",
	"squamous_cell_carcinoma",
}

// ValidLabel reports whether label belongs to the closed vocabulary
func ValidLabel(label string) bool {
	for _, l := range Labels {
		if l == label {
			return true
		}
	}
	return false
}
