package pdf

import "math"

// Point is a point in PDF user space.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in PDF user space.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Normalize returns the rectangle with X0<=X1 and Y0<=Y1.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

// Matrix is a 2D affine transform:
//
//	| A B 0 |
//	| C D 0 |
//	| E F 1 |
//
// Points transform as row vectors: (x', y') = (x, y, 1) * M.
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{A: 1, D: 1}
}

// Scale returns a scaling matrix.
func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Rotate returns a rotation matrix for the given angle in degrees,
// counterclockwise in PDF user space.
func Rotate(degrees float64) Matrix {
	for degrees < 0 {
		degrees += 360
	}
	for degrees >= 360 {
		degrees -= 360
	}
	switch degrees {
	case 0:
		return Identity()
	case 90:
		return Matrix{B: 1, C: -1}
	case 180:
		return Matrix{A: -1, D: -1}
	case 270:
		return Matrix{B: -1, C: 1}
	}
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return Matrix{A: cos, B: sin, C: -sin, D: cos}
}

// Mul returns m * n, applying m first.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
		E: m.E*n.A + m.F*n.C + n.E,
		F: m.E*n.B + m.F*n.D + n.F,
	}
}

// Invert returns the inverse of m. Singular matrices invert to identity.
func (m Matrix) Invert() Matrix {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity()
	}
	inv := 1 / det
	out := Matrix{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
	}
	out.E = -(m.E*out.A + m.F*out.C)
	out.F = -(m.E*out.B + m.F*out.D)
	return out
}

// TransformPoint applies the matrix to a point.
func (m Matrix) TransformPoint(p Point) Point {
	return Point{
		X: p.X*m.A + p.Y*m.C + m.E,
		Y: p.X*m.B + p.Y*m.D + m.F,
	}
}

// TransformRect applies the matrix to a rectangle and returns the
// bounding box of the transformed corners.
func (m Matrix) TransformRect(r Rect) Rect {
	corners := [4]Point{
		m.TransformPoint(Point{r.X0, r.Y0}),
		m.TransformPoint(Point{r.X1, r.Y0}),
		m.TransformPoint(Point{r.X0, r.Y1}),
		m.TransformPoint(Point{r.X1, r.Y1}),
	}
	out := Rect{X0: corners[0].X, Y0: corners[0].Y, X1: corners[0].X, Y1: corners[0].Y}
	for _, p := range corners[1:] {
		out.X0 = math.Min(out.X0, p.X)
		out.Y0 = math.Min(out.Y0, p.Y)
		out.X1 = math.Max(out.X1, p.X)
		out.Y1 = math.Max(out.Y1, p.Y)
	}
	return out
}
