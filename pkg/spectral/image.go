// Package spectral holds grayscale images together with their centered 2D
// Fourier spectra and exposes the magnitude, phase, real and imaginary views
// used by the mixer.
package spectral

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/cmplx"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDecode is returned when uploaded bytes are not a decodable image.
	ErrDecode = errors.New("spectral: cannot decode image")

	// ErrEmptyImage is returned for images with no pixels.
	ErrEmptyImage = errors.New("spectral: image has no pixels")

	// ErrImageTooLarge is returned when an image declares more pixels than
	// the decoder accepts.
	ErrImageTooLarge = errors.New("spectral: image too large")

	// ErrUnknownComponent is returned by ParseComponent for an unrecognised name.
	ErrUnknownComponent = errors.New("spectral: unknown component")
)

// Component selects one read view of an image.
type Component string

const (
	Magnitude Component = "magnitude"
	Phase     Component = "phase"
	Real      Component = "real"
	Imaginary Component = "imaginary"
	Raw       Component = "raw"
)

// ParseComponent maps a request string to a Component. The empty string
// selects the raw intensity grid.
func ParseComponent(s string) (Component, error) {
	switch Component(s) {
	case Magnitude, Phase, Real, Imaginary, Raw:
		return Component(s), nil
	case "":
		return Raw, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownComponent, s)
}

// Image is a single-channel 8-bit intensity grid and its cached spectrum.
// Resize is the only mutator and replaces both together, so the spectrum always
// describes the current pixels.
type Image struct {
	// ID is the caller-supplied key of the image within a store
	ID string

	gray     *image.Gray
	spectrum *Spectrum
}

// NewImage wraps an existing grayscale raster and computes its spectrum.
func NewImage(id string, gray *image.Gray) (*Image, error) {
	b := gray.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}
	// Normalize to a zero origin so pixel (0,0) is row 0, column 0.
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), gray, b.Min, draw.Src)

	img := &Image{ID: id, gray: g}
	img.spectrum = Forward(img.Grid())
	return img, nil
}

// Decode reads any registered image format (PNG, JPEG, GIF, BMP, TIFF, WebP),
// converts it to 8-bit luma and builds an Image.
//
// The header is read first and images declaring more than maxPixels pixels
// are rejected with ErrImageTooLarge before any raster is allocated. A
// maxPixels of zero or less disables the check.
func Decode(id string, r io.Reader, maxPixels int) (*Image, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if maxPixels > 0 && cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	src, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	gray, ok := src.(*image.Gray)
	if !ok {
		// draw converts through color.GrayModel (ITU-R 601 luma weights)
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
	}
	return NewImage(id, gray)
}

// Height returns the number of pixel rows.
func (m *Image) Height() int { return m.gray.Bounds().Dy() }

// Width returns the number of pixel columns.
func (m *Image) Width() int { return m.gray.Bounds().Dx() }

// Gray returns the underlying raster. Callers must not modify it.
func (m *Image) Gray() *image.Gray { return m.gray }

// Spectrum returns the cached centered spectrum. Callers must not modify it.
func (m *Image) Spectrum() *Spectrum { return m.spectrum }

// Grid returns the intensities as a height x width matrix of values in [0,255].
func (m *Image) Grid() *mat.Dense {
	h, w := m.Height(), m.Width()
	data := make([]float64, h*w)
	for y := 0; y < h; y++ {
		row := m.gray.Pix[y*m.gray.Stride : y*m.gray.Stride+w]
		for x, v := range row {
			data[y*w+x] = float64(v)
		}
	}
	return mat.NewDense(h, w, data)
}

// Resize resamples the image to height x width with a Catmull-Rom (bicubic)
// kernel and recomputes the spectrum. It is a no-op when the shape is unchanged.
// The new raster and spectrum are computed before either field is replaced.
func (m *Image) Resize(height, width int) error {
	if height <= 0 || width <= 0 {
		return fmt.Errorf("spectral: invalid resize target %dx%d", width, height)
	}
	if height == m.Height() && width == m.Width() {
		return nil
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), m.gray, m.gray.Bounds(), draw.Src, nil)

	next := &Image{gray: dst}
	spectrum := Forward(next.Grid())

	m.gray, m.spectrum = dst, spectrum
	return nil
}

// Magnitude returns |F| for every coefficient.
func (m *Image) Magnitude() *mat.Dense {
	return m.view(cmplx.Abs)
}

// Phase returns arg(F) in [-pi, pi] for every coefficient.
func (m *Image) Phase() *mat.Dense {
	return m.view(cmplx.Phase)
}

// Real returns Re(F) for every coefficient.
func (m *Image) Real() *mat.Dense {
	return m.view(func(c complex128) float64 { return real(c) })
}

// Imag returns Im(F) for every coefficient.
func (m *Image) Imag() *mat.Dense {
	return m.view(func(c complex128) float64 { return imag(c) })
}

// Component returns the requested read view. Raw returns the intensity grid.
func (m *Image) Component(c Component) (*mat.Dense, error) {
	switch c {
	case Magnitude:
		return m.Magnitude(), nil
	case Phase:
		return m.Phase(), nil
	case Real:
		return m.Real(), nil
	case Imaginary:
		return m.Imag(), nil
	case Raw:
		return m.Grid(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, c)
}

func (m *Image) view(f func(complex128) float64) *mat.Dense {
	s := m.spectrum
	data := make([]float64, len(s.Data))
	for i, c := range s.Data {
		data[i] = f(c)
	}
	return mat.NewDense(s.Rows, s.Cols, data)
}
