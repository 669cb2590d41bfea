package spectral

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Spectrum is a dense 2D complex grid in row-major order. Spectra produced by
// Forward are center-shifted: the zero frequency sits at (Rows/2, Cols/2).
type Spectrum struct {
	Rows, Cols int
	Data       []complex128
}

// NewSpectrum allocates a zeroed rows x cols spectrum.
func NewSpectrum(rows, cols int) *Spectrum {
	return &Spectrum{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// At returns the coefficient at row i, column j.
func (s *Spectrum) At(i, j int) complex128 { return s.Data[i*s.Cols+j] }

// Forward computes the 2D discrete Fourier transform of grid and shifts the
// result so the zero frequency is centered.
//
// Parameters:
//   - grid: real-valued input, e.g. 8-bit intensities as float64
//
// Returns:
//   - the centered spectrum with the same dimensions as grid
func Forward(grid *mat.Dense) *Spectrum {
	rows, cols := grid.Dims()
	s := NewSpectrum(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			s.Data[i*cols+j] = complex(grid.At(i, j), 0)
		}
	}
	fft2(s.Data, rows, cols, true)
	return shift(s, rows/2, cols/2)
}

// Inverse undoes the center shift, applies the inverse 2D transform and
// returns the elementwise magnitude. The magnitude is taken because the
// numerical inverse of a recombined spectrum carries a small imaginary residue.
func Inverse(s *Spectrum) *mat.Dense {
	rows, cols := s.Rows, s.Cols
	u := shift(s, rows-rows/2, cols-cols/2)
	fft2(u.Data, rows, cols, false)

	// gonum transforms are unnormalized: forward then inverse multiplies by N.
	n := float64(rows * cols)
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, cmplx.Abs(u.Data[i*cols+j])/n)
		}
	}
	return out
}

// shift rolls the spectrum by dr rows and dc columns with wrap-around.
// Rolling by (n/2) is fftshift, rolling by (n - n/2) is its inverse.
func shift(s *Spectrum, dr, dc int) *Spectrum {
	out := NewSpectrum(s.Rows, s.Cols)
	for i := 0; i < s.Rows; i++ {
		ii := (i + dr) % s.Rows
		for j := 0; j < s.Cols; j++ {
			jj := (j + dc) % s.Cols
			out.Data[ii*s.Cols+jj] = s.Data[i*s.Cols+j]
		}
	}
	return out
}

// fft2 transforms data in place, rows first and then columns. gonum's complex
// FFT handles arbitrary lengths so images need no power-of-two padding.
func fft2(data []complex128, rows, cols int, forward bool) {
	rowFFT := fourier.NewCmplxFFT(cols)
	row := make([]complex128, cols)
	for i := 0; i < rows; i++ {
		copy(row, data[i*cols:(i+1)*cols])
		if forward {
			rowFFT.Coefficients(row, row)
		} else {
			rowFFT.Sequence(row, row)
		}
		copy(data[i*cols:(i+1)*cols], row)
	}

	colFFT := fourier.NewCmplxFFT(rows)
	col := make([]complex128, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = data[i*cols+j]
		}
		if forward {
			colFFT.Coefficients(col, col)
		} else {
			colFFT.Sequence(col, col)
		}
		for i := 0; i < rows; i++ {
			data[i*cols+j] = col[i]
		}
	}
}
