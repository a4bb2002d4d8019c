// Package krylov provides the preconditioned Krylov accelerators used on both
// the fine and the coarse level: CG for symmetric positive definite systems
// and BiCGStab for the general case. Operators, preconditioners and scalar
// products are plain interfaces so that sequential and overlapping-parallel
// variants compose freely.
package krylov

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// Operator is the linear map y = A*x over plain slices.
type Operator interface {
	Apply(x, y []float64)
	Rows() int
}

// Preconditioner computes an approximate correction v from a defect d.
type Preconditioner interface {
	Apply(v, d []float64)
}

// NoOpPreconditioner passes the defect through unchanged.
type NoOpPreconditioner struct{}

func (NoOpPreconditioner) Apply(v, d []float64) { copy(v, d) }

// MatrixOperator wraps a scalar CSR matrix together with its communication
// object. In the overlapping case the product is made consistent by
// broadcasting owner values after the local multiply.
type MatrixOperator struct {
	A    utils.CSR
	Info parallel.Info
}

func NewMatrixOperator(A utils.CSR, info parallel.Info) *MatrixOperator {
	return &MatrixOperator{A: A, Info: info}
}

func (op *MatrixOperator) Apply(x, y []float64) {
	op.A.MulVec(x, y)
	if op.Info.Category() == parallel.Overlapping {
		op.Info.CopyOwnerToAll(y, 1, 0)
	}
}

func (op *MatrixOperator) Rows() int { return op.A.Rows() }

func (op *MatrixOperator) Category() parallel.Category { return op.Info.Category() }

// ScalarProduct computes inner products consistent with the data
// distribution the vectors live in.
type ScalarProduct interface {
	Dot(a, b []float64) float64
	Norm(a []float64) float64
}

// NewScalarProduct selects the scalar product matching the communication
// category. blockSize is the number of scalar components per index entry, 1
// for scalar vectors. An unknown category is a configuration error and fails
// fast.
func NewScalarProduct(info parallel.Info, blockSize int) (ScalarProduct, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("scalar product needs a positive block size, got %d", blockSize)
	}
	switch info.Category() {
	case parallel.Sequential:
		return seqScalarProduct{}, nil
	case parallel.Overlapping:
		return &overlapScalarProduct{info: info, blockSize: blockSize}, nil
	}
	return nil, fmt.Errorf("no scalar product for communication category %v", info.Category())
}

type seqScalarProduct struct{}

func (seqScalarProduct) Dot(a, b []float64) float64 { return floats.Dot(a, b) }
func (seqScalarProduct) Norm(a []float64) float64   { return floats.Norm(a, 2) }

// overlapScalarProduct sums only owner entries locally, then reduces over all
// ranks, so that overlap copies are not double counted. Vectors carry
// blockSize scalars per index entry, so ownership is decided per block.
type overlapScalarProduct struct {
	info      parallel.Info
	blockSize int
}

func (sp *overlapScalarProduct) Dot(a, b []float64) float64 {
	var local float64
	for i := range a {
		if sp.info.Owner(i / sp.blockSize) {
			local += a[i] * b[i]
		}
	}
	return sp.info.Sum(local)
}

func (sp *overlapScalarProduct) Norm(a []float64) float64 {
	d := sp.Dot(a, a)
	if d < 0 {
		d = 0
	}
	return sqrt(d)
}

// Result reports the outcome of an accelerator run. Non-convergence is a
// reported state, never an error: the caller decides whether it is fatal.
type Result struct {
	Iterations int
	Reduction  float64
	Converged  bool
	Elapsed    time.Duration
}
