package cmd

import (
	"testing"

	"github.com/magiconair/properties/assert"

	"github.com/kel85uk/opm-simulators/InputParameters"
	"github.com/kel85uk/opm-simulators/reservoir"
	"github.com/kel85uk/opm-simulators/utils"
)

func TestRunSolve(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Test Case
Smoother: jacobi
Relax: 0.8
UseAmg: false
PressureAggregation: true
Accelerator: bicgstab
SolverTol: 1.e-3
MaxIter: 30
Strength: symmetric # Can be symmetric or unsymmetric
Alpha: 0.3
OuterTol: 1.e-8
`)
	sp := InputParameters.NewSolverParameters()
	if err = sp.Parse(fileInput); err != nil {
		panic(err)
	}
	assert.Equal(t, sp.Smoother, "jacobi")
	assert.Equal(t, sp.Relax, 0.8)
	assert.Equal(t, sp.SolverTol, 1.e-3)
	assert.Equal(t, sp.MaxIter, 30)
	assert.Equal(t, sp.PressureAggregation, true)
	assert.Equal(t, sp.OuterTol, 1.e-8)
	// Fields absent from the file keep their defaults
	assert.Equal(t, sp.MaxLevels, 10)
	assert.Equal(t, sp.Accelerator, "bicgstab")
	sp.Print()

	// Small sequential case
	ms := &ModelSolve{Nx: 4, Ny: 4, Nz: 2, BlockSize: 2, NP: 1, Seed: 1}
	xSeq, resSeq := RunSolve(ms, sp)
	assert.Equal(t, resSeq.Converged, true)
	assert.Equal(t, relativeResidual(ms, xSeq) < 1e-6, true)

	// Same case split over two in-process ranks. The owner entries
	// assembled into a global vector must solve the global system just
	// like the sequential run.
	ms.NP = 2
	xPar, resPar := RunSolve(ms, sp)
	assert.Equal(t, resPar.Converged, true)
	assert.Equal(t, relativeResidual(ms, xPar) < 1e-6, true)
}

// relativeResidual rebuilds the deterministic problem for ms and measures how
// well x solves it.
func relativeResidual(ms *ModelSolve, x *utils.BlockVector) float64 {
	var (
		p = reservoir.NewProblem(ms.Nx, ms.Ny, ms.Nz, ms.BlockSize, ms.Seed)
		r = utils.NewBlockVector(p.NumCells(), ms.BlockSize)
	)
	p.Matrix.ApplyDefect(x, p.Rhs, r)
	return r.Norm() / p.Rhs.Norm()
}
