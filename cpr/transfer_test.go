package cpr

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kel85uk/opm-simulators/amg"
	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// blockGrid builds the 5-point Laplacian of an nx x ny grid as a block matrix
// with 2x2 blocks: the pressure-pressure scalar carries the stencil, the
// second component is decoupled.
func blockGrid(nx, ny int) *utils.BlockSparse {
	var (
		n         = nx * ny
		addresses [][2]int
	)
	neighbors := func(c int) (nb []int) {
		i, j := c%nx, c/nx
		if j > 0 {
			nb = append(nb, c-nx)
		}
		if i > 0 {
			nb = append(nb, c-1)
		}
		if i < nx-1 {
			nb = append(nb, c+1)
		}
		if j < ny-1 {
			nb = append(nb, c+nx)
		}
		return
	}
	for c := 0; c < n; c++ {
		row := append(neighbors(c), c)
		sort.Ints(row)
		for _, j := range row {
			addresses = append(addresses, [2]int{c, j})
		}
	}
	m := utils.NewBlockSparse(n, n, 2, 2, addresses)
	for c := 0; c < n; c++ {
		m.GetBlockView(c, c).Set(0, 0, 4).Set(1, 1, 1)
		for _, j := range neighbors(c) {
			m.GetBlockView(c, j).Set(0, 0, -1)
		}
	}
	return m
}

func TestTransferDirect(t *testing.T) {
	var (
		m    = blockGrid(3, 3)
		fine = NewOperator(m, parallel.SequentialInfo{})
		p    = NewLevelTransferPolicy(0, false, amg.DefaultCriterion())
	)
	assert.NoError(t, p.CreateCoarseLevelSystem(fine))
	{ // Coarse dimension and entries follow the fine pressure system
		assert.Equal(t, 9, p.CoarseDim())
		cm := p.CoarseMatrix()
		assert.Equal(t, 4., cm.At(0, 0))
		assert.Equal(t, -1., cm.At(0, 1))
		assert.Equal(t, -1., cm.At(0, 3))
		assert.Equal(t, 0., cm.At(0, 2))
		assert.Equal(t, m.NumBlocks(), cm.NNZ())
	}
	{ // The coarse communication is the fine one, not a new object
		assert.False(t, p.OwnsCoarseInfo())
	}
	{ // Restriction copies the pressure component, prolongation adds it back
		d := utils.NewBlockVector(9, 2)
		for v := 0; v < 9; v++ {
			d.SetComponent(v, 0, float64(v))
			d.SetComponent(v, 1, 100)
		}
		p.MoveToCoarseLevel(d)
		for v := 0; v < 9; v++ {
			assert.Equal(t, float64(v), p.Rhs()[v])
			assert.Equal(t, 0., p.Lhs()[v])
		}
		copy(p.Lhs(), p.Rhs())
		corr := utils.NewBlockVector(9, 2)
		p.MoveToFineLevel(corr)
		for v := 0; v < 9; v++ {
			assert.Equal(t, float64(v), corr.Component(v, 0))
			assert.Equal(t, 0., corr.Component(v, 1))
		}
	}
}

func TestTransferAggregation(t *testing.T) {
	var (
		m    = blockGrid(3, 3)
		fine = NewOperator(m, parallel.SequentialInfo{})
		crit = amg.Criterion{
			Strength:         amg.SymmetricStrength,
			Alpha:            0.25,
			MinAggregateSize: 3,
			MaxAggregateSize: 3,
			CoarsenTarget:    1000,
			MaxLevels:        10,
		}
		p = NewLevelTransferPolicy(0, true, crit)
	)
	assert.NoError(t, p.CreateCoarseLevelSystem(fine))
	{ // Aggregation partitions the nine cells into three aggregates
		assert.Equal(t, 3, p.CoarseDim())
		assert.Equal(t, amg.AggregatesMap{0, 0, 1, 0, 1, 1, 2, 2, 2}, p.Aggregates())
		assert.True(t, p.OwnsCoarseInfo())
		assert.Equal(t, parallel.Sequential, p.CoarseInfo().Category())
	}
	{ // Galerkin sums of the pressure stencil
		cm := p.CoarseMatrix()
		assert.Equal(t, 8., cm.At(0, 0))
		assert.Equal(t, 8., cm.At(1, 1))
		assert.Equal(t, 8., cm.At(2, 2))
		assert.Equal(t, -3., cm.At(0, 1))
		assert.Equal(t, -3., cm.At(1, 0))
		assert.Equal(t, -1., cm.At(0, 2))
		assert.Equal(t, -1., cm.At(2, 0))
		assert.Equal(t, -2., cm.At(1, 2))
		assert.Equal(t, -2., cm.At(2, 1))
	}
	{ // Coarse row sums equal the fine row sums over each aggregate. The
		// fixed diagonal of 4 leaves boundary rows with a surplus of one per
		// missing neighbor: aggregate {0,1,3} collects 2+1+1, {2,4,5}
		// collects 2+0+1 and {6,7,8} collects 2+1+2.
		var (
			cm   = p.CoarseMatrix()
			want = []float64{4, 3, 5}
		)
		for i := 0; i < 3; i++ {
			sum := 0.
			for j := 0; j < 3; j++ {
				sum += cm.At(i, j)
			}
			assert.InDelta(t, want[i], sum, 1e-14)
		}
	}
	{ // Restriction sums per aggregate, prolongation is piecewise constant
		d := utils.NewBlockVector(9, 2)
		for v := 0; v < 9; v++ {
			d.SetComponent(v, 0, 1)
		}
		p.MoveToCoarseLevel(d)
		assert.Equal(t, []float64{3, 3, 3}, p.Rhs())
		for a := range p.Lhs() {
			p.Lhs()[a] = 2
		}
		corr := utils.NewBlockVector(9, 2)
		p.MoveToFineLevel(corr)
		for v := 0; v < 9; v++ {
			assert.Equal(t, 2., corr.Component(v, 0))
			assert.Equal(t, 0., corr.Component(v, 1))
		}
	}
	{ // Recomputing the entries from a rescaled fine matrix reuses the pattern
		s := m.Copy()
		for i := 0; i < s.NrBlocks; i++ {
			for _, j := range s.RowCols(i) {
				s.GetBlockView(i, j).Scale(2)
			}
		}
		p.CalculateCoarseEntries(s)
		assert.Equal(t, 16., p.CoarseMatrix().At(0, 0))
		assert.Equal(t, -6., p.CoarseMatrix().At(0, 1))
	}
}

func TestTransferIsolatedVertex(t *testing.T) {
	// A 1D chain of three coupled cells plus one cell without any coupling:
	// the lone cell must stay out of the coarse system entirely.
	var (
		addresses = [][2]int{
			{0, 0}, {0, 1},
			{1, 0}, {1, 1}, {1, 2},
			{2, 1}, {2, 2},
			{3, 3},
		}
		m = utils.NewBlockSparse(4, 4, 2, 2, addresses)
	)
	for i := 0; i < 4; i++ {
		m.GetBlockView(i, i).Set(0, 0, 2).Set(1, 1, 1)
	}
	for _, e := range [][2]int{{0, 1}, {1, 0}, {1, 2}, {2, 1}} {
		m.GetBlockView(e[0], e[1]).Set(0, 0, -1)
	}
	var (
		fine = NewOperator(m, parallel.SequentialInfo{})
		crit = amg.Criterion{
			Strength:         amg.SymmetricStrength,
			Alpha:            1.0 / 3.0,
			MinAggregateSize: 1,
			MaxAggregateSize: 4,
			CoarsenTarget:    1000,
			MaxLevels:        10,
		}
		p = NewLevelTransferPolicy(0, true, crit)
	)
	assert.NoError(t, p.CreateCoarseLevelSystem(fine))
	assert.Equal(t, 1, p.CoarseDim())
	assert.Equal(t, 1, p.Counts().Isolated)
	assert.Equal(t, amg.Isolated, p.Aggregates()[3])

	d := utils.NewBlockVector(4, 2)
	for v := 0; v < 4; v++ {
		d.SetComponent(v, 0, 1)
	}
	p.MoveToCoarseLevel(d)
	assert.Equal(t, []float64{3}, p.Rhs())

	p.Lhs()[0] = 5
	corr := utils.NewBlockVector(4, 2)
	p.MoveToFineLevel(corr)
	assert.Equal(t, 5., corr.Component(0, 0))
	assert.Equal(t, 5., corr.Component(2, 0))
	assert.Equal(t, 0., corr.Component(3, 0))
}
