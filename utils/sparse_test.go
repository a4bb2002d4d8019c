package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDOKToCSR(t *testing.T) {
	// Column ordering within each row
	{
		A := NewDOK(3, 3)
		A.Set(0, 2, 3)
		A.Set(0, 0, 1)
		A.Set(1, 1, 2)
		A.Add(2, 0, -1)
		A.Add(2, 0, -1)
		R := A.ToCSR()
		cols, vals := R.Row(0)
		assert.Equal(t, []int{0, 2}, cols)
		assert.Equal(t, []float64{1, 3}, vals)
		assert.Equal(t, -2., R.At(2, 0))
	}
	// Diagonal with absent entries reads as zero
	{
		A := NewDOK(3, 3)
		A.Set(0, 0, 4)
		A.Set(2, 2, 5)
		A.Set(1, 0, -1)
		d := A.ToCSR().Diagonal()
		assert.Equal(t, []float64{4, 0, 5}, d)
	}
}

func TestCSRMulVec(t *testing.T) {
	var (
		A = NewDOK(3, 3)
	)
	A.Set(0, 0, 2)
	A.Set(0, 1, -1)
	A.Set(1, 0, -1)
	A.Set(1, 1, 2)
	A.Set(1, 2, -1)
	A.Set(2, 1, -1)
	A.Set(2, 2, 2)
	R := A.ToCSR()
	x := []float64{1, 1, 1}
	y := make([]float64, 3)
	R.MulVec(x, y)
	assert.Equal(t, []float64{1, 0, 1}, y)
	R.MulVecSub(x, y)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, y, 1.e-15)
	// ToDense agrees entry by entry
	D := R.ToDense()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, R.At(i, j), D.At(i, j))
		}
	}
}

func TestCSRFromPattern(t *testing.T) {
	var (
		rows = []Index{{0, 1}, {0, 1, 2}, {1, 2}}
	)
	R := NewCSRFromPattern(3, 3, rows)
	assert.Equal(t, 7, R.NNZ())
	assert.Equal(t, 0., R.At(1, 1))
	R.AddAt(1, 1, 5)
	R.AddAt(1, 1, 5)
	assert.Equal(t, 10., R.At(1, 1))
	R.SetAt(0, 0, 3)
	assert.Equal(t, 3., R.At(0, 0))
	// Entries outside of the pattern are rejected
	assert.Panics(t, func() { R.AddAt(0, 2, 1) })
	assert.Panics(t, func() { R.SetAt(2, 0, 1) })
}
