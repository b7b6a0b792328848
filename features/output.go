package features

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Result holds the rows and labels of a batch in index order
type Result struct {
	IDs     []string
	Rows    [][]float64
	Labels  []string
	Skipped []*ItemError
}

// Matrix stacks the rows into a dense matrix. All rows must have the same width.
func (r *Result) Matrix() (*mat.Dense, error) {
	if len(r.Rows) == 0 {
		return nil, errors.New("no feature rows")
	}

	width := len(r.Rows[0])
	if width == 0 {
		return nil, errors.New("feature rows are empty")
	}

	data := make([]float64, 0, len(r.Rows)*width)
	for i, row := range r.Rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d (%s) has %d features, want %d", i, r.IDs[i], len(row), width)
		}
		data = append(data, row...)
	}

	return mat.NewDense(len(r.Rows), width, data), nil
}

// WriteMatrix writes one space-separated row per line with 18 fractional digits
// in exponent form, the layout numpy.loadtxt reads back
func WriteMatrix(w io.Writer, m mat.Matrix) error {
	bw := bufio.NewWriter(w)
	rows, cols := m.Dims()

	buf := make([]byte, 0, 32)
	for i := range rows {
		for j := range cols {
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			buf = strconv.AppendFloat(buf[:0], m.At(i, j), 'e', 18, 64)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteLabels writes the labels newline-separated without a trailing newline
func WriteLabels(w io.Writer, labels []string) error {
	_, err := io.WriteString(w, strings.Join(labels, "\n"))
	return err
}

// Save writes the feature matrix and the labels to their files.
// An empty result produces two empty files.
func (r *Result) Save(featuresPath, labelsPath string) error {
	var m *mat.Dense
	if len(r.Rows) > 0 {
		var err error
		if m, err = r.Matrix(); err != nil {
			return err
		}
	}

	if err := writeFile(featuresPath, func(w io.Writer) error {
		if m == nil {
			return nil
		}
		return WriteMatrix(w, m)
	}); err != nil {
		return fmt.Errorf("failed to write features: %w", err)
	}

	if err := writeFile(labelsPath, func(w io.Writer) error {
		return WriteLabels(w, r.Labels)
	}); err != nil {
		return fmt.Errorf("failed to write labels: %w", err)
	}

	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
