// Package geo provides axis-aligned rectangle math for the spatial canvas:
// overlap tests for region membership, padding for auto-growing bounds, and
// center distance for proximity triggers.
package geo

import "math"

// Rect is an axis-aligned rectangle in canvas coordinates.
// X,Y is the top-left corner; Width and Height extend right and down.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Overlaps reports whether a and b overlap using open-interval semantics:
// rectangles that merely touch at an edge or corner do NOT overlap. This
// matches region membership, where a node sitting exactly on a region border
// is not inside it.
func Overlaps(a, b Rect) bool {
	return a.X < b.X+b.Width && a.X+a.Width > b.X &&
		a.Y < b.Y+b.Height && a.Y+a.Height > b.Y
}

// Pad returns r expanded outward by p on every side. A negative p shrinks
// the rectangle; callers are responsible for keeping dimensions sane.
func Pad(r Rect, p float64) Rect {
	return Rect{
		X:      r.X - p,
		Y:      r.Y - p,
		Width:  r.Width + 2*p,
		Height: r.Height + 2*p,
	}
}

// Contains reports whether inner lies fully within outer (closed bounds:
// shared edges count as contained).
func Contains(outer, inner Rect) bool {
	return inner.X >= outer.X &&
		inner.Y >= outer.Y &&
		inner.X+inner.Width <= outer.X+outer.Width &&
		inner.Y+inner.Height <= outer.Y+outer.Height
}

// Center returns the center point of r.
func Center(r Rect) (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Distance returns the Euclidean center-to-center distance between a and b.
func Distance(a, b Rect) float64 {
	ax, ay := Center(a)
	bx, by := Center(b)
	return math.Hypot(bx-ax, by-ay)
}
