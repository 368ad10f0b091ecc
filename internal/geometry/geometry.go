// Package geometry converts editor field boxes into PDF page space and fits
// raster images into those boxes.
//
// Editor coordinates are percentages of the rendered page with the origin at
// the top-left corner. PDF user space is measured in points with the origin at
// the bottom-left corner of the page box.
package geometry

import "math"

// Page is the size of a page box in points.
type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Percent is a field box expressed in percent of the page size, top-left origin.
type Percent struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Box is an absolute rectangle in points, bottom-left origin.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ToAbsolute converts a percentage box into points on the given page. The
// vertical axis is flipped and the box height subtracted, since PDF boxes are
// anchored at their lower-left corner. Boxes overflowing the page are passed
// through unchanged.
func ToAbsolute(p Percent, page Page) Box {
	absWidth := (p.Width / 100) * page.Width
	absHeight := (p.Height / 100) * page.Height
	distanceFromTop := (p.Y / 100) * page.Height

	return Box{
		X:      (p.X / 100) * page.Width,
		Y:      page.Height - distanceFromTop - absHeight,
		Width:  absWidth,
		Height: absHeight,
	}
}

// ToPercent is the inverse of ToAbsolute for the same page. A page with a zero
// dimension maps to zero percentages on that axis.
func ToPercent(b Box, page Page) Percent {
	var p Percent
	if page.Width > 0 {
		p.X = b.X / page.Width * 100
		p.Width = b.Width / page.Width * 100
	}
	if page.Height > 0 {
		top := page.Height - b.Y - b.Height
		p.Y = top / page.Height * 100
		p.Height = b.Height / page.Height * 100
	}
	return p
}

// Clamp restricts b to the rectangle [0,page.Width]x[0,page.Height]. The
// second result reports whether anything was cut off.
func Clamp(b Box, page Page) (Box, bool) {
	x0 := clamp(b.X, 0, page.Width)
	y0 := clamp(b.Y, 0, page.Height)
	x1 := clamp(b.X+b.Width, 0, page.Width)
	y1 := clamp(b.Y+b.Height, 0, page.Height)

	out := Box{X: x0, Y: y0, Width: math.Max(0, x1-x0), Height: math.Max(0, y1-y0)}
	const eps = 1e-9
	changed := math.Abs(out.X-b.X) > eps || math.Abs(out.Y-b.Y) > eps ||
		math.Abs(out.Width-b.Width) > eps || math.Abs(out.Height-b.Height) > eps
	return out, changed
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
