package utils

import (
	"bytes"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a thin wrapper around a gonum dense matrix. It is small enough to
// pass by value; the underlying storage is shared between copies, which is
// what allows block views into larger contiguous arrays (see BlockSparse).
type Matrix struct {
	M *mat.Dense
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var (
		data []float64
	)
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			panic(fmt.Errorf("mismatch in allocation: NewMatrix(%d, %d) with data length %d", nr, nc, len(dataO[0])))
		}
		data = dataO[0]
	} else {
		data = make([]float64, nr*nc)
	}
	R = Matrix{mat.NewDense(nr, nc, data)}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)    { return m.M.Dims() }
func (m Matrix) At(i, j int) float64 { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix       { return m.M.T() }

func (m Matrix) IsEmpty() bool { return m.M == nil }

func (m Matrix) Data() []float64 { return m.M.RawMatrix().Data }

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) AddAt(i, j int, val float64) Matrix { // Changes receiver
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nr, nc)
	R.M.CloneFrom(m.M)
	return
}

func (m Matrix) Zero() Matrix { // Changes receiver
	m.M.Zero()
	return m
}

func (m Matrix) Scale(a float64) Matrix { // Changes receiver
	m.M.Scale(a, m.M)
	return m
}

func (m Matrix) Add(A Matrix) Matrix { // Changes receiver
	m.M.Add(m.M, A.M)
	return m
}

func (m Matrix) Subtract(A Matrix) Matrix { // Changes receiver
	m.M.Sub(m.M, A.M)
	return m
}

func (m Matrix) Mul(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nr, _ = m.Dims()
		_, nc = A.Dims()
	)
	R = NewMatrix(nr, nc)
	R.M.Mul(m.M, A.M)
	return
}

func (m Matrix) Inverse() (R Matrix, err error) {
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nr, nc)
	err = R.M.Inverse(m.M)
	return
}

// MulVec computes y = M * x over raw slices sized to the matrix dims.
func (m Matrix) MulVec(x, y []float64) {
	var (
		nr, nc = m.Dims()
		raw    = m.M.RawMatrix()
	)
	for i := 0; i < nr; i++ {
		var sum float64
		row := raw.Data[i*raw.Stride : i*raw.Stride+nc]
		for j, v := range row {
			sum += v * x[j]
		}
		y[i] = sum
	}
}

// MulVecSub computes y -= M * x.
func (m Matrix) MulVecSub(x, y []float64) {
	var (
		nr, nc = m.Dims()
		raw    = m.M.RawMatrix()
	)
	for i := 0; i < nr; i++ {
		var sum float64
		row := raw.Data[i*raw.Stride : i*raw.Stride+nc]
		for j, v := range row {
			sum += v * x[j]
		}
		y[i] -= sum
	}
}

func (m Matrix) Print(msgO ...string) (out string) {
	var (
		name = ""
	)
	if len(msgO) != 0 {
		name = msgO[0]
	}
	buf := bytes.Buffer{}
	buf.WriteString(fmt.Sprintf("%s = \n%8.5f\n", name, mat.Formatted(m.M, mat.Squeeze())))
	return buf.String()
}
