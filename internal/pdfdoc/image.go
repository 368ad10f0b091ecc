package pdfdoc

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded raster ready to be embedded as an image XObject.
type Image struct {
	Width  int
	Height int
	Format string

	filter     string
	colorSpace string
	data       []byte
	alpha      []byte // flate-compressed soft mask, nil when opaque
}

// maxImagePixels bounds the declared size of an image before it is decoded.
const maxImagePixels = 40_000_000

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes.
//
// Baseline JPEGs in RGB or grayscale are embedded as-is with DCTDecode. All
// other images are converted to 8-bit RGB with an optional soft mask carrying
// the alpha channel. Images declaring more than maxImagePixels pixels are
// rejected from their header alone.
func DecodeImage(data []byte) (*Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrUnsupportedImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height, maxImagePixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrUnsupportedImage)
	}

	if format == "jpeg" {
		switch img.(type) {
		case *image.YCbCr:
			return &Image{Width: b.Dx(), Height: b.Dy(), Format: format, filter: "DCTDecode", colorSpace: "DeviceRGB", data: data}, nil
		case *image.Gray:
			return &Image{Width: b.Dx(), Height: b.Dy(), Format: format, filter: "DCTDecode", colorSpace: "DeviceGray", data: data}, nil
		}
	}

	rgb, alpha, opaque := splitAlpha(img)
	out := &Image{Width: b.Dx(), Height: b.Dy(), Format: format, filter: "FlateDecode", colorSpace: "DeviceRGB"}
	if out.data, err = deflate(rgb); err != nil {
		return nil, err
	}
	if !opaque {
		if out.alpha, err = deflate(alpha); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// splitAlpha returns the non-premultiplied RGB samples and the alpha samples
// of img, row by row.
func splitAlpha(img image.Image) (rgb, alpha []byte, opaque bool) {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	rgb = make([]byte, 0, n*3)
	alpha = make([]byte, 0, n)
	opaque = true
	add := func(c color.NRGBA) {
		rgb = append(rgb, c.R, c.G, c.B)
		alpha = append(alpha, c.A)
		if c.A != 0xff {
			opaque = false
		}
	}

	switch m := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				add(color.NRGBA{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]})
			}
		}
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				c := color.RGBA{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]}
				if c.A == 0xff {
					add(color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
					continue
				}
				// Premultiplied.
				add(color.NRGBAModel.Convert(c).(color.NRGBA))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				add(color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA))
			}
		}
	}
	return rgb, alpha, opaque
}

// HasAlpha reports whether the image carries a soft mask.
func (img *Image) HasAlpha() bool { return img.alpha != nil }

func deflate(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
