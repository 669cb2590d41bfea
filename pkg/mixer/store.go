// Package mixer keeps a set of size-unified images and recombines their
// spectra into a single image.
package mixer

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"ftbeamlab/internal/monitoring"
	"ftbeamlab/pkg/spectral"
)

var (
	// ErrNoData is returned when a mix is requested on an empty store.
	ErrNoData = errors.New("mixer: no data")

	// ErrNotFound is returned when an image id is not in the store.
	ErrNotFound = errors.New("mixer: image not found")
)

// Store holds the images of one session keyed by caller-supplied id.
//
// Once it holds at least one image, every member has the same dimensions: the
// minimum height and the minimum width over all members. Mutations take the
// write lock, so a resize triggered by one upload is never observed half-done
// by a concurrent mix or preview.
type Store struct {
	mu     sync.RWMutex
	images map[string]*spectral.Image
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{images: make(map[string]*spectral.Image)}
}

// Add inserts img under img.ID, replacing any previous image with that id, and
// re-unifies the sizes of all stored images.
func (s *Store) Add(img *spectral.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images[img.ID] = img
	return s.unify()
}

// unify resizes every image to the common minimum height and width.
// Caller must hold the write lock.
func (s *Store) unify() error {
	if len(s.images) == 0 {
		return nil
	}

	minH, minW := math.MaxInt, math.MaxInt
	for _, img := range s.images {
		minH = min(minH, img.Height())
		minW = min(minW, img.Width())
	}

	resized := 0
	for id, img := range s.images {
		if img.Height() == minH && img.Width() == minW {
			continue
		}
		if err := img.Resize(minH, minW); err != nil {
			return fmt.Errorf("failed to resize image %q: %w", id, err)
		}
		resized++
	}
	if resized > 0 {
		monitoring.Logf("mixer: unified %d image(s) to %dx%d", resized, minW, minH)
	}
	return nil
}

// With runs fn on the image stored under id while holding the read lock, so
// fn never observes a resize in progress.
func (s *Store) With(id string, fn func(*spectral.Image) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return fn(img)
}

// Remove deletes the image stored under id. Remaining images keep their
// current, already unified, dimensions.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(s.images, id)
	return nil
}

// Clear drops every image.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = make(map[string]*spectral.Image)
}

// Len returns the number of stored images.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// IDs returns the stored image ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.images))
	for id := range s.images {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Component returns one read view of a stored image under the read lock.
func (s *Store) Component(id string, c spectral.Component) (*mat.Dense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return img.Component(c)
}

// Mix recombines the spectra of all stored images according to mode and
// weights, optionally masks the result, and returns the inverse transform.
// The returned grid is not normalized for display.
func (s *Store) Mix(weights Weights, mode Mode, mask *Mask) (*mat.Dense, error) {
	if mask != nil {
		if err := mask.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.images) == 0 {
		return nil, ErrNoData
	}

	var combined *spectral.Spectrum
	switch mode {
	case MagPhase:
		combined = s.mixMagPhase(weights)
	case RealImag:
		combined = s.mixRealImag(weights)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}

	if mask != nil {
		mask.Apply(combined)
	}
	return spectral.Inverse(combined), nil
}

// dims returns the shared dimensions. Caller must hold a lock on a non-empty store.
func (s *Store) dims() (rows, cols int) {
	for _, img := range s.images {
		return img.Height(), img.Width()
	}
	return 0, 0
}

func (s *Store) mixMagPhase(weights Weights) *spectral.Spectrum {
	rows, cols := s.dims()
	n := rows * cols
	sumMag := make([]float64, n)
	sumPhase := make([]float64, n)

	for id, img := range s.images {
		wm, wp := weights.For(id, "mag"), weights.For(id, "phase")
		if wm == 0 && wp == 0 {
			continue
		}
		for i, c := range img.Spectrum().Data {
			sumMag[i] += wm * cmplx.Abs(c)
			sumPhase[i] += wp * cmplx.Phase(c)
		}
	}

	out := spectral.NewSpectrum(rows, cols)
	for i := range out.Data {
		out.Data[i] = cmplx.Rect(sumMag[i], sumPhase[i])
	}
	return out
}

func (s *Store) mixRealImag(weights Weights) *spectral.Spectrum {
	rows, cols := s.dims()
	out := spectral.NewSpectrum(rows, cols)

	for id, img := range s.images {
		wr, wi := weights.For(id, "real"), weights.For(id, "imag")
		if wr == 0 && wi == 0 {
			continue
		}
		for i, c := range img.Spectrum().Data {
			out.Data[i] += complex(wr*real(c), wi*imag(c))
		}
	}
	return out
}
