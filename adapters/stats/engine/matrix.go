package engine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"glyphstat/domain/core"
)

// Matrix is a read-only dense matrix. Every accessor returns a copy, so a
// cached Matrix can be shared between callers.
type Matrix struct {
	rows, cols int
	data       []float64
	labels     []string
	emptyRows  []int
}

func newMatrix(rows, cols int, labels []string) *Matrix {
	return &Matrix{
		rows:   rows,
		cols:   cols,
		data:   make([]float64, rows*cols),
		labels: labels,
	}
}

// NewMatrixFromRows copies a row-major table into a Matrix.
func NewMatrixFromRows(rows [][]float64, labels []string) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, core.NewValidationError("matrix", "no rows")
	}
	m := newMatrix(len(rows), len(rows[0]), append([]string(nil), labels...))
	for i, row := range rows {
		if len(row) != m.cols {
			return nil, core.NewValidationError("matrix", fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), m.cols))
		}
		copy(m.data[i*m.cols:], row)
	}
	return m, nil
}

func (m *Matrix) add(i, j int, v float64) { m.data[i*m.cols+j] += v }

// Dims returns the matrix shape.
func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

// At returns one cell.
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.cols+j] }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return append([]float64(nil), m.data[i*m.cols:(i+1)*m.cols]...)
}

// Rows returns a copy as a row-major table.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, m.rows)
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

// RowSum returns the sum of row i.
func (m *Matrix) RowSum(i int) float64 {
	s := 0.0
	for _, v := range m.data[i*m.cols : (i+1)*m.cols] {
		s += v
	}
	return s
}

// Total returns the sum of all cells.
func (m *Matrix) Total() float64 {
	s := 0.0
	for _, v := range m.data {
		s += v
	}
	return s
}

// Labels returns a copy of the row/column labels.
func (m *Matrix) Labels() []string { return append([]string(nil), m.labels...) }

// EmptyRows lists rows with no support. They are left all zero.
func (m *Matrix) EmptyRows() []int { return append([]int(nil), m.emptyRows...) }

// Dense returns a gonum copy of the matrix.
func (m *Matrix) Dense() *mat.Dense {
	return mat.NewDense(m.rows, m.cols, append([]float64(nil), m.data...))
}
