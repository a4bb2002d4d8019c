package krylov

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// tridiagonal builds the n x n matrix with the given sub-, main and
// super-diagonal values.
func tridiagonal(n int, lo, di, up float64) utils.CSR {
	d := utils.NewDOK(n, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, di)
		if i > 0 {
			d.Set(i, i-1, lo)
		}
		if i < n-1 {
			d.Set(i, i+1, up)
		}
	}
	return d.ToCSR()
}

// jacobiPrec is the diagonal preconditioner, enough to exercise the
// preconditioned paths of the accelerators.
type jacobiPrec struct {
	dinv []float64
}

func newJacobiPrec(m utils.CSR) *jacobiPrec {
	d := m.Diagonal()
	dinv := make([]float64, len(d))
	for i, v := range d {
		dinv[i] = 1 / v
	}
	return &jacobiPrec{dinv: dinv}
}

func (p *jacobiPrec) Apply(v, d []float64) {
	for i := range v {
		v[i] = p.dinv[i] * d[i]
	}
}

func residualNorm(m utils.CSR, x, b []float64) float64 {
	r := make([]float64, len(b))
	copy(r, b)
	m.MulVecSub(x, r)
	sp, _ := NewScalarProduct(parallel.SequentialInfo{}, 1)
	return sp.Norm(r)
}

func TestCG(t *testing.T) {
	var (
		n  = 20
		m  = tridiagonal(n, -1, 2, -1)
		op = NewMatrixOperator(m, parallel.SequentialInfo{})
	)
	sp, err := NewScalarProduct(parallel.SequentialInfo{}, 1)
	assert.NoError(t, err)
	b := make([]float64, n)
	for i := range b {
		b[i] = 1
	}
	{ // Unpreconditioned CG solves the SPD Laplacian
		x := make([]float64, n)
		res := CG(op, sp, NoOpPreconditioner{}, x, b, 1e-10, 200, 0)
		assert.True(t, res.Converged)
		assert.LessOrEqual(t, res.Reduction, 1e-10)
		assert.InDelta(t, 0, residualNorm(m, x, b), 1e-8)
	}
	{ // Preconditioning does not hurt the iteration count
		x := make([]float64, n)
		plain := CG(op, sp, NoOpPreconditioner{}, x, b, 1e-10, 200, 0)
		for i := range x {
			x[i] = 0
		}
		prec := CG(op, sp, newJacobiPrec(m), x, b, 1e-10, 200, 0)
		assert.True(t, prec.Converged)
		assert.LessOrEqual(t, prec.Iterations, plain.Iterations)
	}
	{ // A zero right hand side converges immediately
		x := make([]float64, n)
		res := CG(op, sp, NoOpPreconditioner{}, x, make([]float64, n), 1e-10, 200, 0)
		assert.True(t, res.Converged)
		assert.Equal(t, 0, res.Iterations)
	}
}

func TestBiCGStab(t *testing.T) {
	var (
		n  = 20
		m  = tridiagonal(n, -1.5, 3, -0.5)
		op = NewMatrixOperator(m, parallel.SequentialInfo{})
	)
	sp, err := NewScalarProduct(parallel.SequentialInfo{}, 1)
	assert.NoError(t, err)
	b := make([]float64, n)
	for i := range b {
		b[i] = 1
	}
	{ // Unsymmetric system
		x := make([]float64, n)
		res := BiCGStab(op, sp, newJacobiPrec(m), x, b, 1e-10, 200, 0)
		assert.True(t, res.Converged)
		assert.InDelta(t, 0, residualNorm(m, x, b), 1e-8)
	}
	{ // The zero operator breaks the recurrence; reported, not thrown
		zero := utils.NewDOK(n, n).ToCSR()
		zop := NewMatrixOperator(zero, parallel.SequentialInfo{})
		x := make([]float64, n)
		res := BiCGStab(zop, sp, NoOpPreconditioner{}, x, b, 1e-10, 200, 0)
		assert.False(t, res.Converged)
	}
}

// The overlapping scalar product must not double count shared indices: the
// global vector (1,2,3,4) is split over two ranks with indices 1 and 2 in the
// overlap, and the distributed dot product has to match the global one.
func TestOverlapScalarProduct(t *testing.T) {
	var (
		g       = parallel.NewGroup(2)
		entries = [][]parallel.IndexEntry{
			{
				{Global: 0, Attr: parallel.AttrOwner},
				{Global: 1, Attr: parallel.AttrOwner, Shared: true},
				{Global: 2, Attr: parallel.AttrCopy, Shared: true},
			},
			{
				{Global: 1, Attr: parallel.AttrCopy, Shared: true},
				{Global: 2, Attr: parallel.AttrOwner, Shared: true},
				{Global: 3, Attr: parallel.AttrOwner},
			},
		}
		vals = [][]float64{{1, 2, 3}, {2, 3, 4}}
		dots [2]float64
		wg   sync.WaitGroup
	)
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			info := parallel.NewOverlapInfo(g, r, entries[r])
			sp, err := NewScalarProduct(info, 1)
			assert.NoError(t, err)
			dots[r] = sp.Dot(vals[r], vals[r])
		}(r)
	}
	wg.Wait()
	assert.Equal(t, 30., dots[0])
	assert.Equal(t, 30., dots[1])
	assert.InDelta(t, math.Sqrt(30), seqScalarProduct{}.Norm([]float64{1, 2, 3, 4}), 1e-14)
}

// With block vectors the index entries describe blocks, not scalars:
// ownership masking works per block of the flattened vector. The global
// block vector (1,2),(3,4),(5,6),(7,8) has dot product 204 with itself.
func TestOverlapScalarProductBlocks(t *testing.T) {
	var (
		g       = parallel.NewGroup(2)
		entries = [][]parallel.IndexEntry{
			{
				{Global: 0, Attr: parallel.AttrOwner},
				{Global: 1, Attr: parallel.AttrOwner, Shared: true},
				{Global: 2, Attr: parallel.AttrCopy, Shared: true},
			},
			{
				{Global: 1, Attr: parallel.AttrCopy, Shared: true},
				{Global: 2, Attr: parallel.AttrOwner, Shared: true},
				{Global: 3, Attr: parallel.AttrOwner},
			},
		}
		vals = [][]float64{{1, 2, 3, 4, 5, 6}, {3, 4, 5, 6, 7, 8}}
		dots [2]float64
		wg   sync.WaitGroup
	)
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			info := parallel.NewOverlapInfo(g, r, entries[r])
			sp, err := NewScalarProduct(info, 2)
			assert.NoError(t, err)
			dots[r] = sp.Dot(vals[r], vals[r])
		}(r)
	}
	wg.Wait()
	assert.Equal(t, 204., dots[0])
	assert.Equal(t, 204., dots[1])

	_, err := NewScalarProduct(parallel.SequentialInfo{}, 0)
	assert.Error(t, err)
}
