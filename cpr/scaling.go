package cpr

import (
	"github.com/kel85uk/opm-simulators/utils"
)

// ScaleMatrixQuasiImpes returns a copy of m with the quasi-IMPES row
// combination applied: inside every nonzero block, the pressure row absorbs
// the remaining rows. The sparsity pattern is unchanged and m itself is left
// untouched.
func ScaleMatrixQuasiImpes(m *utils.BlockSparse, pressureIndex int) (R *utils.BlockSparse) {
	var (
		br, bc = m.BlockDims()
	)
	R = m.Copy()
	for i := 0; i < R.NrBlocks; i++ {
		for _, j := range R.RowCols(i) {
			block := R.GetBlockView(i, j)
			for r := 0; r < br; r++ {
				if r == pressureIndex {
					continue
				}
				for c := 0; c < bc; c++ {
					block.AddAt(pressureIndex, c, block.At(r, c))
				}
			}
		}
	}
	return
}

// ScaleVectorQuasiImpes applies the matching row combination to each block of
// v in place, so that a scaled matrix sees a consistently scaled defect.
func ScaleVectorQuasiImpes(v *utils.BlockVector, pressureIndex int) {
	for b := 0; b < v.NBlocks; b++ {
		block := v.Block(b)
		for k, val := range block {
			if k == pressureIndex {
				continue
			}
			block[pressureIndex] += val
		}
	}
}
