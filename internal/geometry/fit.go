package geometry

import "math"

// Fit is the result of fitting an image into a box: the scaled image size and
// the offsets that center it inside the box.
type Fit struct {
	Scale   float64
	Width   float64
	Height  float64
	XOffset float64
	YOffset float64
}

// Empty reports whether the fitted image has no visible area.
func (f Fit) Empty() bool {
	return f.Width <= 0 || f.Height <= 0
}

// FitImage computes the largest aspect-preserving size of an imageWidth x
// imageHeight image that fits inside boxWidth x boxHeight, centered in the box.
//
// Degenerate boxes (zero, negative or NaN) and images without pixels yield a
// zero Fit instead of dividing by zero.
func FitImage(boxWidth, boxHeight float64, imageWidth, imageHeight int) Fit {
	if !(boxWidth > 0) || !(boxHeight > 0) || imageWidth <= 0 || imageHeight <= 0 {
		return Fit{}
	}

	iw, ih := float64(imageWidth), float64(imageHeight)
	scale := math.Min(boxWidth/iw, boxHeight/ih)
	w, h := iw*scale, ih*scale

	return Fit{
		Scale:   scale,
		Width:   w,
		Height:  h,
		XOffset: (boxWidth - w) / 2,
		YOffset: (boxHeight - h) / 2,
	}
}

// Place returns the absolute rectangle the fitted image occupies inside b.
func (f Fit) Place(b Box) Box {
	return Box{
		X:      b.X + f.XOffset,
		Y:      b.Y + f.YOffset,
		Width:  f.Width,
		Height: f.Height,
	}
}
