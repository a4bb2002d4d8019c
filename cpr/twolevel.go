package cpr

import (
	"github.com/kel85uk/opm-simulators/amg"
	"github.com/kel85uk/opm-simulators/krylov"
	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// TwoLevelMethod combines the coarse pressure correction with a fine-level
// block smoother. This variant runs zero pre-smoothing and one
// post-smoothing step per application, fixed at construction.
type TwoLevelMethod struct {
	op       *Operator
	smoother amg.BlockSmoother
	transfer *LevelTransferPolicy
	coarse   *CoarseSolver

	preSteps, postSteps int
	primed              bool

	residual *utils.BlockVector
	update   *utils.BlockVector
	lastRes  krylov.Result
}

func NewTwoLevelMethod(op *Operator, smoother amg.BlockSmoother, transfer *LevelTransferPolicy,
	policy *CoarseSolverPolicy) (t *TwoLevelMethod, err error) {
	var (
		m      = op.Getmat()
		br, _  = m.BlockDims()
		coarse *CoarseSolver
	)
	if coarse, err = policy.CreateCoarseLevelSolver(transfer); err != nil {
		return
	}
	t = &TwoLevelMethod{
		op:        op,
		smoother:  smoother,
		transfer:  transfer,
		coarse:    coarse,
		preSteps:  0,
		postSteps: 1,
		residual:  utils.NewBlockVector(m.NrBlocks, br),
		update:    utils.NewBlockVector(m.NrBlocks, br),
	}
	return
}

// Pre must be called once before the first Apply; Post is the matching
// teardown. The smoothers here carry no per-solve state, so beyond tracking
// the contract both are empty.
func (t *TwoLevelMethod) Pre(x, b *utils.BlockVector) {
	if t.primed {
		panic("two-level method: Pre called twice without Post")
	}
	t.primed = true
}

func (t *TwoLevelMethod) Post(x *utils.BlockVector) { t.primed = false }

// Apply computes a correction v for the defect d: restriction of the defect,
// approximate coarse solve, prolongation, then the post-smoothing sweeps on
// the updated residual.
func (t *TwoLevelMethod) Apply(v, d *utils.BlockVector) {
	if !t.primed {
		panic("two-level method: Apply called before Pre")
	}
	v.Zero()
	t.residual.CopyFrom(d)
	for s := 0; s < t.preSteps; s++ {
		t.smooth(v, d)
	}
	if t.preSteps > 0 {
		t.op.Getmat().ApplyDefect(v, d, t.residual)
	}

	t.transfer.MoveToCoarseLevel(t.residual)
	t.coarse.Apply(t.transfer.Lhs(), t.transfer.Rhs(), &t.lastRes)
	t.transfer.MoveToFineLevel(v)

	for s := 0; s < t.postSteps; s++ {
		t.smooth(v, d)
	}
	if t.op.Category() == parallel.Overlapping {
		for k := 0; k < v.BlockSize; k++ {
			t.op.Info().CopyOwnerToAll(v.Data, v.BlockSize, k)
		}
	}
}

// smooth adds one smoother correction for the current residual d - A*v.
func (t *TwoLevelMethod) smooth(v, d *utils.BlockVector) {
	t.op.Getmat().ApplyDefect(v, d, t.residual)
	t.smoother.Apply(t.update, t.residual)
	v.AddScaled(1, t.update)
}

// LastCoarseResult reports the iteration outcome of the most recent coarse
// solve.
func (t *TwoLevelMethod) LastCoarseResult() krylov.Result { return t.lastRes }
