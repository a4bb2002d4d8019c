package cpr

import (
	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// Operator is the block linear operator handed to the preconditioner: a
// block-sparse matrix together with the communication describing its row
// distribution.
type Operator struct {
	matrix *utils.BlockSparse
	info   parallel.Info
}

func NewOperator(m *utils.BlockSparse, info parallel.Info) *Operator {
	return &Operator{matrix: m, info: info}
}

// Getmat returns the underlying block matrix.
func (op *Operator) Getmat() *utils.BlockSparse { return op.matrix }

func (op *Operator) Info() parallel.Info { return op.info }

func (op *Operator) Category() parallel.Category { return op.info.Category() }

// Apply computes y = A*x and makes the result consistent across the
// owner/overlap boundary.
func (op *Operator) Apply(x, y *utils.BlockVector) {
	op.matrix.Apply(x, y)
	if op.info.Category() == parallel.Overlapping {
		for k := 0; k < y.BlockSize; k++ {
			op.info.CopyOwnerToAll(y.Data, y.BlockSize, k)
		}
	}
}

// FlatOperator presents a block operator through the flat-vector interface
// the Krylov accelerators consume.
type FlatOperator struct {
	Op *Operator
}

func (f FlatOperator) Apply(x, y []float64) {
	var (
		m     = f.Op.Getmat()
		br, _ = m.BlockDims()
	)
	xv := utils.NewBlockVector(m.NrBlocks, br, x)
	yv := utils.NewBlockVector(m.NrBlocks, br, y)
	f.Op.Apply(xv, yv)
}

func (f FlatOperator) Rows() int {
	var (
		m     = f.Op.Getmat()
		br, _ = m.BlockDims()
	)
	return m.NrBlocks * br
}
