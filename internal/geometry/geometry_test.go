package geometry

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const tolerance = 1e-9

var approx = cmpopts.EquateApprox(0, tolerance)

func TestToAbsoluteFullWidthStrip(t *testing.T) {
	for _, page := range []Page{{612, 792}, {595.28, 841.89}, {100, 50}} {
		got := ToAbsolute(Percent{X: 0, Y: 0, Width: 100, Height: 10}, page)
		want := Box{X: 0, Y: 0.9 * page.Height, Width: page.Width, Height: 0.1 * page.Height}
		if diff := cmp.Diff(want, got, approx); diff != "" {
			t.Errorf("page %v: mismatch (-want +got):\n%s", page, diff)
		}
	}
}

func TestToAbsoluteLetterPage(t *testing.T) {
	got := ToAbsolute(Percent{X: 10, Y: 20, Width: 30, Height: 10}, Page{612, 792})
	want := Box{X: 61.2, Y: 554.4, Width: 183.6, Height: 79.2}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestToAbsoluteOverflowPassesThrough(t *testing.T) {
	got := ToAbsolute(Percent{X: 90, Y: 95, Width: 20, Height: 10}, Page{200, 100})
	if got.Y >= 0 {
		t.Errorf("expected box below the page bottom, got y=%v", got.Y)
	}
	if got.X+got.Width <= 200 {
		t.Errorf("expected box past the right edge, got %+v", got)
	}
}

func TestPercentRoundTrip(t *testing.T) {
	pages := []Page{{612, 792}, {842, 595}, {1, 1}}
	fields := []Percent{
		{0, 0, 100, 100},
		{10, 20, 30, 10},
		{33.333, 66.667, 12.5, 7.25},
		{99.9, 0.1, 0.1, 99.9},
	}
	for _, page := range pages {
		for _, f := range fields {
			got := ToPercent(ToAbsolute(f, page), page)
			if diff := cmp.Diff(f, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("page %v field %v: round trip mismatch (-want +got):\n%s", page, f, diff)
			}
		}
	}
}

func TestClamp(t *testing.T) {
	page := Page{Width: 200, Height: 100}
	tests := []struct {
		name    string
		in      Box
		want    Box
		changed bool
	}{
		{"inside", Box{10, 10, 50, 20}, Box{10, 10, 50, 20}, false},
		{"right edge", Box{180, 10, 50, 20}, Box{180, 10, 20, 20}, true},
		{"below bottom", Box{10, -5, 50, 20}, Box{10, 0, 50, 15}, true},
		{"fully outside", Box{250, 10, 50, 20}, Box{200, 10, 0, 20}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Clamp(tt.in, page)
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFitImagePreservesAspect(t *testing.T) {
	boxes := [][2]float64{{183.6, 79.2}, {100, 100}, {10, 300}, {300, 10}, {0.5, 0.25}}
	images := [][2]int{{150, 50}, {50, 150}, {1, 1}, {640, 480}, {3, 7}}

	for _, b := range boxes {
		for _, img := range images {
			f := FitImage(b[0], b[1], img[0], img[1])
			wantRatio := float64(img[0]) / float64(img[1])
			if got := f.Width / f.Height; math.Abs(got-wantRatio) > 1e-9*wantRatio {
				t.Errorf("box %v img %v: ratio %v, want %v", b, img, got, wantRatio)
			}
			if f.Width > b[0]+tolerance || f.Height > b[1]+tolerance {
				t.Errorf("box %v img %v: %vx%v does not fit", b, img, f.Width, f.Height)
			}
			if math.Abs(f.Width-b[0]) > tolerance && math.Abs(f.Height-b[1]) > tolerance {
				t.Errorf("box %v img %v: neither side touches the box (%vx%v)", b, img, f.Width, f.Height)
			}
			if math.Abs(f.XOffset+f.Width/2-b[0]/2) > tolerance {
				t.Errorf("box %v img %v: not centered horizontally", b, img)
			}
			if math.Abs(f.YOffset+f.Height/2-b[1]/2) > tolerance {
				t.Errorf("box %v img %v: not centered vertically", b, img)
			}
		}
	}
}

func TestFitImageSignatureBox(t *testing.T) {
	got := FitImage(183.6, 79.2, 150, 50)
	want := Fit{Scale: 1.224, Width: 183.6, Height: 61.2, XOffset: 0, YOffset: 9}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	placed := got.Place(Box{X: 61.2, Y: 554.4, Width: 183.6, Height: 79.2})
	wantBox := Box{X: 61.2, Y: 563.4, Width: 183.6, Height: 61.2}
	if diff := cmp.Diff(wantBox, placed, approx); diff != "" {
		t.Errorf("placed mismatch (-want +got):\n%s", diff)
	}
}

func TestFitImageDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		bw, bh float64
		iw, ih int
	}{
		{"zero width box", 0, 10, 10, 10},
		{"zero height box", 10, 0, 10, 10},
		{"negative box", -1, 10, 10, 10},
		{"nan box", math.NaN(), 10, 10, 10},
		{"empty image", 10, 10, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FitImage(tt.bw, tt.bh, tt.iw, tt.ih)
			if !f.Empty() {
				t.Errorf("expected empty fit, got %+v", f)
			}
			if f != (Fit{}) {
				t.Errorf("expected zero value, got %+v", f)
			}
		})
	}
}
