package extension

// Geometry is the physical layout of the strip as four edge counts.
type Geometry struct {
	Left   int `json:"left" yaml:"left"`
	Right  int `json:"right" yaml:"right"`
	Top    int `json:"top" yaml:"top"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

func (g Geometry) Total() int {
	return g.Left + g.Right + g.Top + g.Bottom
}

type Edge int

const (
	EdgeLeft Edge = iota
	EdgeTop
	EdgeRight
	EdgeBottom
)

func (e Edge) String() string {
	return [...]string{"left", "top", "right", "bottom"}[e]
}

// Segment is a contiguous run of strip indices along one edge.
type Segment struct {
	Edge  Edge
	Start int
	Count int
}

// Segments returns the strip layout. The strip starts at the bottom of the
// left edge and runs clockwise: left going up, top going right, right going
// down, bottom going left.
func (g Geometry) Segments() []Segment {
	order := []struct {
		edge  Edge
		count int
	}{
		{EdgeLeft, g.Left},
		{EdgeTop, g.Top},
		{EdgeRight, g.Right},
		{EdgeBottom, g.Bottom},
	}

	segments := make([]Segment, 0, len(order))
	start := 0
	for _, o := range order {
		segments = append(segments, Segment{Edge: o.edge, Start: start, Count: o.count})
		start += o.count
	}
	return segments
}
