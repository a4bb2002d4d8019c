package utils

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// BlockVector is a contiguous vector of NBlocks blocks, each holding
// BlockSize unknowns for one cell. Component k of block b lives at
// Data[b*BlockSize+k].
type BlockVector struct {
	NBlocks, BlockSize int
	Data               []float64
}

func NewBlockVector(nBlocks, blockSize int, dataO ...[]float64) (v *BlockVector) {
	var (
		data []float64
	)
	if len(dataO) != 0 {
		if len(dataO[0]) != nBlocks*blockSize {
			panic(fmt.Errorf("mismatch in allocation: NewBlockVector(%d, %d) with data length %d",
				nBlocks, blockSize, len(dataO[0])))
		}
		data = dataO[0]
	} else {
		data = make([]float64, nBlocks*blockSize)
	}
	v = &BlockVector{
		NBlocks:   nBlocks,
		BlockSize: blockSize,
		Data:      data,
	}
	return
}

func (v *BlockVector) Len() int { return len(v.Data) }

// Block returns a mutable view of block b.
func (v *BlockVector) Block(b int) []float64 {
	return v.Data[b*v.BlockSize : (b+1)*v.BlockSize]
}

func (v *BlockVector) Component(b, k int) float64 {
	return v.Data[b*v.BlockSize+k]
}

func (v *BlockVector) SetComponent(b, k int, val float64) {
	v.Data[b*v.BlockSize+k] = val
}

func (v *BlockVector) AddComponent(b, k int, val float64) {
	v.Data[b*v.BlockSize+k] += val
}

func (v *BlockVector) Copy() (R *BlockVector) {
	R = NewBlockVector(v.NBlocks, v.BlockSize)
	copy(R.Data, v.Data)
	return
}

func (v *BlockVector) CopyFrom(w *BlockVector) {
	copy(v.Data, w.Data)
}

func (v *BlockVector) Zero() {
	for i := range v.Data {
		v.Data[i] = 0
	}
}

func (v *BlockVector) Scale(a float64) {
	floats.Scale(a, v.Data)
}

// AddScaled computes v += alpha*w.
func (v *BlockVector) AddScaled(alpha float64, w *BlockVector) {
	floats.AddScaled(v.Data, alpha, w.Data)
}

func (v *BlockVector) Dot(w *BlockVector) float64 {
	return floats.Dot(v.Data, w.Data)
}

func (v *BlockVector) Norm() float64 {
	return floats.Norm(v.Data, 2)
}
