// Package cpr implements the constrained-pressure-residual preconditioner
// for blackoil linear systems: a quasi-IMPES scaling decouples the pressure
// unknown, a level-transfer policy extracts or aggregates the scalar
// pressure system, a coarse solver policy solves it approximately with AMG
// or a smoother behind a Krylov accelerator, and a two-level method glues
// the coarse correction to a fine-level block smoother.
package cpr

import (
	"fmt"

	"github.com/kel85uk/opm-simulators/amg"
	"github.com/kel85uk/opm-simulators/krylov"
	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// Config is the CPR parameter block controlling the pressure solve.
type Config struct {
	UseAmg              bool    // AMG hierarchy vs plain smoother on the coarse level
	PressureAggregation bool    // aggregate the pressure system vs direct extraction
	SolverTol           float64 // coarse accelerator relative reduction
	MaxIter             int     // coarse accelerator iteration cap
	Verbose             bool
	UseBiCGStab         bool // false selects CG
	PressureIndex       int  // pressure row/column inside each block
}

func DefaultConfig() Config {
	return Config{
		UseAmg:      true,
		SolverTol:   1e-2,
		MaxIter:     25,
		UseBiCGStab: true,
	}
}

// BlackoilAmg is the externally visible preconditioner: the outer Krylov
// solver calls Pre once, Apply per iteration and Post at the end.
type BlackoilAmg struct {
	cfg      Config
	scaledOp *Operator
	twoLevel *TwoLevelMethod
	transfer *LevelTransferPolicy
	defect   *utils.BlockVector
}

// NewBlackoilAmg builds the preconditioner for the given fine operator:
// scaled matrix copy, fine block smoother, transfer policy and coarse
// solver. The fine operator itself is left untouched.
func NewBlackoilAmg(cfg Config, fine *Operator, crit amg.Criterion, args amg.SmootherArgs) (b *BlackoilAmg, err error) {
	switch fine.Category() {
	case parallel.Sequential, parallel.Overlapping:
	default:
		return nil, fmt.Errorf("unsupported communication category %v", fine.Category())
	}
	var (
		scaled   = ScaleMatrixQuasiImpes(fine.Getmat(), cfg.PressureIndex)
		scaledOp = NewOperator(scaled, fine.Info())
		br, _    = scaled.BlockDims()
	)
	crit.ComponentIndex = cfg.PressureIndex
	smoother, err := amg.NewBlockSmoother(scaled, args, fine.Info())
	if err != nil {
		return nil, err
	}
	transfer := NewLevelTransferPolicy(cfg.PressureIndex, cfg.PressureAggregation, crit)
	if err = transfer.CreateCoarseLevelSystem(scaledOp); err != nil {
		return nil, err
	}
	twoLevel, err := NewTwoLevelMethod(scaledOp, smoother, transfer, NewCoarseSolverPolicy(cfg, args, crit))
	if err != nil {
		return nil, err
	}
	b = &BlackoilAmg{
		cfg:      cfg,
		scaledOp: scaledOp,
		twoLevel: twoLevel,
		transfer: transfer,
		defect:   utils.NewBlockVector(scaled.NrBlocks, br),
	}
	return
}

// Pre must be called exactly once before the first Apply.
func (b *BlackoilAmg) Pre(x, rhs *utils.BlockVector) { b.twoLevel.Pre(x, rhs) }

// Post releases per-solve state.
func (b *BlackoilAmg) Post(x *utils.BlockVector) { b.twoLevel.Post(x) }

func (b *BlackoilAmg) Category() parallel.Category { return b.scaledOp.Category() }

// Apply writes into v the correction for the defect d. The defect is copied
// and rescaled on every call, so repeated applications with fresh defects
// reuse the preconditioner as is.
func (b *BlackoilAmg) Apply(v, d *utils.BlockVector) {
	b.defect.CopyFrom(d)
	ScaleVectorQuasiImpes(b.defect, b.cfg.PressureIndex)
	b.twoLevel.Apply(v, b.defect)
}

// LastCoarseResult reports the outcome of the most recent coarse solve.
func (b *BlackoilAmg) LastCoarseResult() krylov.Result { return b.twoLevel.LastCoarseResult() }

// Transfer exposes the level-transfer policy, mainly for inspection of the
// aggregation outcome.
func (b *BlackoilAmg) Transfer() *LevelTransferPolicy { return b.transfer }

// ScaledOperator returns the quasi-IMPES scaled operator the two-level
// method runs against.
func (b *BlackoilAmg) ScaledOperator() *Operator { return b.scaledOp }

// FlatPreconditioner adapts BlackoilAmg to the flat-vector preconditioner
// interface the Krylov accelerators use for the outer solve.
type FlatPreconditioner struct {
	P *BlackoilAmg
}

func (f FlatPreconditioner) Apply(v, d []float64) {
	var (
		m     = f.P.scaledOp.Getmat()
		br, _ = m.BlockDims()
		vv    = utils.NewBlockVector(m.NrBlocks, br, v)
		dv    = utils.NewBlockVector(m.NrBlocks, br, d)
	)
	f.P.Apply(vv, dv)
}
