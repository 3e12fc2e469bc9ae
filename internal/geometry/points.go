package geometry

import "github.com/karola3vax/Source2-AntiWallHack/pkg/core"

// MaxSamplePoints is the upper bound of a target sample set.
const MaxSamplePoints = 10

// PointSet is an ordered, fixed-capacity list of sample points.
// Index 0 is the eye point, index 1 the box center (or a fallback point),
// and the remaining entries are box corners.
type PointSet struct {
	points [MaxSamplePoints]core.Vec3
	n      int
}

// Len returns the number of points in the set.
func (s *PointSet) Len() int {
	return s.n
}

// At returns the i-th point.
func (s *PointSet) At(i int) core.Vec3 {
	return s.points[i]
}

// Points returns the populated points. The slice aliases the set.
func (s *PointSet) Points() []core.Vec3 {
	return s.points[:s.n]
}

// Reset empties the set.
func (s *PointSet) Reset() {
	s.n = 0
}

func (s *PointSet) add(p core.Vec3) {
	if s.n < MaxSamplePoints {
		s.points[s.n] = p
		s.n++
	}
}

func (s *PointSet) truncate(limit int) {
	if limit < s.n {
		s.n = limit
	}
}
