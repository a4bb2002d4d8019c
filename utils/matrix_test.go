package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatrix(t *testing.T) {
	// Shared backing storage
	{
		data := []float64{1, 2, 3, 4}
		M := NewMatrix(2, 2, data)
		M.Set(0, 0, 9)
		assert.Equal(t, 9., data[0])
	}
	// MulVec / MulVecSub
	{
		M := NewMatrix(2, 2, []float64{1, 2, 3, 4})
		x := []float64{1, 1}
		y := make([]float64, 2)
		M.MulVec(x, y)
		assert.Equal(t, []float64{3, 7}, y)
		M.MulVecSub(x, y)
		assert.InDeltaSlice(t, []float64{0, 0}, y, 1.e-15)
	}
	// Inverse
	{
		M := NewMatrix(2, 2, []float64{4, 0, 0, 2})
		R, err := M.Inverse()
		assert.NoError(t, err)
		assert.InDelta(t, 0.25, R.At(0, 0), 1.e-15)
		assert.InDelta(t, 0.5, R.At(1, 1), 1.e-15)
	}
	// Copy does not alias
	{
		M := NewMatrix(2, 2, []float64{1, 2, 3, 4})
		C := M.Copy()
		C.Set(0, 0, 9)
		assert.Equal(t, 1., M.At(0, 0))
	}
}

func TestIndex(t *testing.T) {
	I := Index{1, 3, 5, 9}
	assert.True(t, I.Contains(5))
	assert.False(t, I.Contains(4))
	assert.Equal(t, 2, I.Position(5))
	assert.Equal(t, -1, I.Position(4))
	assert.Equal(t, 9, I.Max())
	assert.Equal(t, Index{2, 3, 4}, NewRange(2, 4))
}
