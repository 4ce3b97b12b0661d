// Package dat reads and writes the whitespace-delimited numeric text arrays
// that hold cached quantities.
//
// The format is the one numpy's savetxt/loadtxt exchange by default:
//   - one row per line, values separated by a single space
//   - values written as %.18e, non-finite values as nan, inf, -inf
//   - '#' starts a comment; blank lines are ignored
//   - a file holding a single row or a single column reads back as 1-D
package dat

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// maxLineBytes bounds a single row. Spectra for large nside run to a few
// hundred kilobytes per row.
const maxLineBytes = 64 << 20

// Array is a dense row-major array of rank 0, 1 or 2.
// Shape is empty for a scalar.
type Array struct {
	Shape []int
	Data  []float64
}

// Vector returns a 1-D array holding xs.
func Vector(xs ...float64) Array {
	data := make([]float64, len(xs))
	copy(data, xs)
	return Array{Shape: []int{len(xs)}, Data: data}
}

// Scalar returns a 0-D array.
func Scalar(x float64) Array {
	return Array{Shape: []int{}, Data: []float64{x}}
}

// Matrix returns a 2-D array from equal-length rows.
func Matrix(rows [][]float64) (Array, error) {
	if len(rows) == 0 {
		return Array{Shape: []int{0, 0}, Data: []float64{}}, nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Array{}, fmt.Errorf("matrix row %d has %d columns, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return Array{Shape: []int{len(rows), cols}, Data: data}, nil
}

// Validate checks that Shape and Data agree.
func (a Array) Validate() error {
	if len(a.Shape) > 2 {
		return fmt.Errorf("rank %d arrays are not supported", len(a.Shape))
	}
	n := 1
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("negative dimension in shape %v", a.Shape)
		}
		n *= d
	}
	if n != len(a.Data) {
		return fmt.Errorf("shape %v needs %d values, have %d", a.Shape, n, len(a.Data))
	}
	return nil
}

// Rank returns the number of dimensions.
func (a Array) Rank() int { return len(a.Shape) }

// Len returns the number of values.
func (a Array) Len() int { return len(a.Data) }

// Rows returns the number of lines the array occupies on disk.
func (a Array) Rows() int {
	switch len(a.Shape) {
	case 0:
		return 1
	default:
		return a.Shape[0]
	}
}

// Cols returns the number of values per line on disk.
func (a Array) Cols() int {
	if len(a.Shape) == 2 {
		return a.Shape[1]
	}
	return 1
}

// Row returns row i of a 2-D array, or the single value at i otherwise.
// The returned slice aliases the array's data.
func (a Array) Row(i int) []float64 {
	c := a.Cols()
	return a.Data[i*c : (i+1)*c]
}

// At returns the value at (i, j) of a 2-D array. For 1-D arrays j must be 0.
func (a Array) At(i, j int) float64 {
	return a.Data[i*a.Cols()+j]
}

// Equal reports whether a and b have the same shape and values.
// NaNs compare equal to each other.
func (a Array) Equal(b Array) bool {
	if len(a.Shape) != len(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		x, y := a.Data[i], b.Data[i]
		if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
			return false
		}
	}
	return true
}

// FormatValue renders one value the way savetxt's default %.18e does.
func FormatValue(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'e', 18, 64)
}

// Write encodes a to w.
func Write(w io.Writer, a Array) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("write array: %w", err)
	}

	bw := bufio.NewWriter(w)
	rows, cols := a.Rows(), a.Cols()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(FormatValue(a.Data[i*cols+j]))
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write array: %w", err)
	}
	return nil
}

// Marshal returns the encoding of a.
func Marshal(a Array) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SyntaxError reports an unparseable line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Read decodes an array from r, squeezing a single row or single column to
// 1-D and a single value to a scalar.
func Read(r io.Reader) (Array, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		data []float64
		rows int
		cols = -1
		line int
	)
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if cols >= 0 && len(fields) != cols {
			return Array{}, &SyntaxError{Line: line, Msg: fmt.Sprintf("got %d columns, want %d", len(fields), cols)}
		}
		cols = len(fields)
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				var numErr *strconv.NumError
				if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
					// loadtxt saturates out-of-range literals the same way
					data = append(data, v)
					continue
				}
				return Array{}, &SyntaxError{Line: line, Msg: fmt.Sprintf("cannot parse %q as a number", f)}
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return Array{}, fmt.Errorf("read array: %w", err)
	}

	switch {
	case rows == 0:
		return Array{Shape: []int{0}, Data: []float64{}}, nil
	case rows == 1 && cols == 1:
		return Array{Shape: []int{}, Data: data}, nil
	case rows == 1:
		return Array{Shape: []int{cols}, Data: data}, nil
	case cols == 1:
		return Array{Shape: []int{rows}, Data: data}, nil
	default:
		return Array{Shape: []int{rows, cols}, Data: data}, nil
	}
}

// Unmarshal decodes data.
func Unmarshal(data []byte) (Array, error) {
	return Read(bytes.NewReader(data))
}

// ReadFile decodes the file at path. A missing file yields an error that
// wraps fs.ErrNotExist.
func ReadFile(path string) (Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return Array{}, err
	}
	defer f.Close()

	a, err := Read(f)
	if err != nil {
		return Array{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}
