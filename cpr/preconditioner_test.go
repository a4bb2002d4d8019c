package cpr

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kel85uk/opm-simulators/amg"
	"github.com/kel85uk/opm-simulators/krylov"
	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// coupledGrid builds a grid Laplacian with a saturation component weakly
// coupled into the pressure equation, the shape the quasi-IMPES scaling is
// made for.
func coupledGrid(nx, ny int) *utils.BlockSparse {
	m := blockGrid(nx, ny)
	for i := 0; i < m.NrBlocks; i++ {
		for _, j := range m.RowCols(i) {
			b := m.GetBlockView(i, j)
			if i == j {
				b.Set(1, 0, 0.05)
				b.Set(0, 1, 0.02)
			} else {
				b.Set(1, 0, -0.05)
			}
		}
	}
	return m
}

func outerSolve(m *utils.BlockSparse, prec krylov.Preconditioner) (krylov.Result, []float64) {
	var (
		op    = NewOperator(m, parallel.SequentialInfo{})
		fop   = FlatOperator{Op: op}
		br, _ = m.BlockDims()
		sp, _ = krylov.NewScalarProduct(parallel.SequentialInfo{}, br)
		n     = fop.Rows()
		x     = make([]float64, n)
		b     = make([]float64, n)
	)
	for i := range b {
		b[i] = 1
	}
	res := krylov.BiCGStab(fop, sp, prec, x, b, 1e-8, 100, 0)
	return res, x
}

func TestBlackoilAmg(t *testing.T) {
	var (
		m    = coupledGrid(4, 4)
		fine = NewOperator(m, parallel.SequentialInfo{})
		cfg  = DefaultConfig()
		crit = amg.DefaultCriterion()
		args = amg.SmootherArgs{Kind: amg.ILU0}
	)
	cfg.SolverTol = 1e-3
	b, err := NewBlackoilAmg(cfg, fine, crit, args)
	assert.NoError(t, err)
	x := utils.NewBlockVector(m.NrBlocks, 2)
	rhs := utils.NewBlockVector(m.NrBlocks, 2)
	b.Pre(x, rhs)
	{ // The CPR preconditioner accelerates the outer BiCGStab
		plain, _ := outerSolve(m, krylov.NoOpPreconditioner{})
		prec, xp := outerSolve(m, FlatPreconditioner{P: b})
		assert.True(t, prec.Converged)
		assert.Less(t, prec.Iterations, plain.Iterations)
		// The preconditioned solution solves the block system.
		var (
			xv = utils.NewBlockVector(m.NrBlocks, 2, xp)
			bv = utils.NewBlockVector(m.NrBlocks, 2)
			rv = utils.NewBlockVector(m.NrBlocks, 2)
		)
		for i := range bv.Data {
			bv.Data[i] = 1
		}
		m.ApplyDefect(xv, bv, rv)
		assert.InDelta(t, 0, rv.Norm(), 1e-6)
	}
	{ // Repeated application with the same defect is deterministic
		var (
			d  = utils.NewBlockVector(m.NrBlocks, 2)
			v1 = utils.NewBlockVector(m.NrBlocks, 2)
			v2 = utils.NewBlockVector(m.NrBlocks, 2)
		)
		for i := range d.Data {
			d.Data[i] = float64(i%7) - 3
		}
		b.Apply(v1, d)
		b.Apply(v2, d)
		assert.Equal(t, v1.Data, v2.Data)
		// The defect passed in is not modified.
		assert.Equal(t, -3., d.Data[0])
		assert.True(t, b.LastCoarseResult().Converged)
	}
	b.Post(x)
}

// Pre and Apply form a strict protocol: Apply before Pre and a second Pre
// without an intervening Post are programming errors.
func TestBlackoilAmgPreContract(t *testing.T) {
	var (
		m      = coupledGrid(3, 3)
		fine   = NewOperator(m, parallel.SequentialInfo{})
		b, err = NewBlackoilAmg(DefaultConfig(), fine, amg.DefaultCriterion(), amg.SmootherArgs{Kind: amg.ILU0})
		x      = utils.NewBlockVector(m.NrBlocks, 2)
		rhs    = utils.NewBlockVector(m.NrBlocks, 2)
		v, d   = utils.NewBlockVector(m.NrBlocks, 2), utils.NewBlockVector(m.NrBlocks, 2)
	)
	assert.NoError(t, err)
	assert.Panics(t, func() { b.Apply(v, d) })
	b.Pre(x, rhs)
	assert.Panics(t, func() { b.Pre(x, rhs) })
	assert.NotPanics(t, func() { b.Apply(v, d) })
	b.Post(x)
	assert.Panics(t, func() { b.Apply(v, d) })
}

func TestBlackoilAmgAggregation(t *testing.T) {
	var (
		m    = coupledGrid(3, 3)
		fine = NewOperator(m, parallel.SequentialInfo{})
		cfg  = DefaultConfig()
		crit = amg.Criterion{
			Strength:         amg.SymmetricStrength,
			Alpha:            0.25,
			MinAggregateSize: 3,
			MaxAggregateSize: 3,
			CoarsenTarget:    1000,
			MaxLevels:        10,
		}
	)
	cfg.PressureAggregation = true
	cfg.UseAmg = false
	b, err := NewBlackoilAmg(cfg, fine, crit, amg.SmootherArgs{Kind: amg.ILU0})
	assert.NoError(t, err)
	assert.Equal(t, 3, b.Transfer().CoarseDim())

	x := utils.NewBlockVector(m.NrBlocks, 2)
	b.Pre(x, utils.NewBlockVector(m.NrBlocks, 2))
	res, _ := outerSolve(m, FlatPreconditioner{P: b})
	b.Post(x)
	assert.True(t, res.Converged)
}

// A one-rank overlapping run must produce exactly the sequential correction:
// the collectives degenerate to local operations and no overlap data exists.
func TestBlackoilAmgOverlappingOneRank(t *testing.T) {
	var (
		m    = coupledGrid(3, 3)
		crit = amg.Criterion{
			Strength:         amg.SymmetricStrength,
			Alpha:            0.25,
			MinAggregateSize: 3,
			MaxAggregateSize: 3,
			CoarsenTarget:    1000,
			MaxLevels:        10,
		}
		cfg  = DefaultConfig()
		args = amg.SmootherArgs{Kind: amg.ILU0}
	)
	cfg.PressureAggregation = true

	seq, err := NewBlackoilAmg(cfg, NewOperator(m, parallel.SequentialInfo{}), crit, args)
	assert.NoError(t, err)

	entries := make([]parallel.IndexEntry, m.NrBlocks)
	for i := range entries {
		entries[i] = parallel.IndexEntry{Global: i, Attr: parallel.AttrOwner}
	}
	var (
		g    = parallel.NewGroup(1)
		par  *BlackoilAmg
		vseq = utils.NewBlockVector(m.NrBlocks, 2)
		vpar = utils.NewBlockVector(m.NrBlocks, 2)
		d    = utils.NewBlockVector(m.NrBlocks, 2)
		wg   sync.WaitGroup
	)
	for i := range d.Data {
		d.Data[i] = 1
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		info := parallel.NewOverlapInfo(g, 0, entries)
		var errp error
		par, errp = NewBlackoilAmg(cfg, NewOperator(m, info), crit, args)
		assert.NoError(t, errp)
		par.Pre(vpar, d)
		par.Apply(vpar, d)
	}()
	wg.Wait()

	seq.Pre(vseq, d)
	seq.Apply(vseq, d)
	assert.Equal(t, parallel.Overlapping, par.Category())
	for i := range vseq.Data {
		assert.InDelta(t, vseq.Data[i], vpar.Data[i], 1e-12)
	}
}
