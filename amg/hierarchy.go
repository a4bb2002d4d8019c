package amg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// prolongatorOmega is the damped-Jacobi weight used to smooth the tentative
// piecewise-constant prolongator.
const prolongatorOmega = 2.0 / 3.0

// Hierarchy is a smoothed-aggregation algebraic multigrid for scalar
// systems. It repeatedly coarsens with the given criterion until the
// dimension drops below the coarsening target (or no further reduction is
// achieved), smooths on every level and solves the coarsest system with a
// dense LU factorization. Applying the hierarchy runs one V-cycle with two
// smoothing steps before and after the coarse correction, which is how the
// two-level preconditioner consumes it: as an approximate inverse of the
// pressure coarse system.
type Hierarchy struct {
	levels   []*amgLevel
	coarseLU *mat.LU
	coarseN  int
	coarseX  *mat.VecDense
	direct   bool

	preSteps, postSteps int
}

type amgLevel struct {
	A        utils.CSR
	P        utils.CSR // smoothed prolongator, fine rows by coarse columns
	smoother Smoother
	nCoarse  int

	// Scratch buffers reused across cycles.
	r, dx  []float64
	cb, cx []float64
}

func NewHierarchy(A utils.CSR, crit Criterion, args SmootherArgs, info parallel.Info) (h *Hierarchy, err error) {
	h = &Hierarchy{preSteps: 2, postSteps: 2}
	if crit.MaxLevels <= 0 {
		crit.MaxLevels = 10
	}
	cur := A
	for levelNum := 0; ; levelNum++ {
		n := cur.Rows()
		if n <= crit.CoarsenTarget || levelNum+1 >= crit.MaxLevels {
			break
		}
		g := NewGraphCSR(cur)
		am, counts, aggErr := BuildAggregates(g, crit)
		if aggErr != nil {
			return nil, aggErr
		}
		// Stop when coarsening no longer shrinks the system.
		if counts.Aggregates == 0 || counts.Aggregates >= n {
			break
		}
		var smoother Smoother
		if smoother, err = NewScalarSmoother(cur, args, info); err != nil {
			return nil, fmt.Errorf("level %d smoother: %w", levelNum, err)
		}
		P := smoothedProlongator(cur, am, counts.Aggregates)
		lev := &amgLevel{
			A:        cur,
			P:        P,
			smoother: smoother,
			nCoarse:  counts.Aggregates,
			r:        make([]float64, n),
			dx:       make([]float64, n),
			cb:       make([]float64, counts.Aggregates),
			cx:       make([]float64, counts.Aggregates),
		}
		h.levels = append(h.levels, lev)
		cur = galerkinProduct(cur, P, counts.Aggregates)
	}

	h.coarseN = cur.Rows()
	if h.coarseN > 0 {
		h.coarseX = mat.NewVecDense(h.coarseN, nil)
		h.coarseLU = &mat.LU{}
		h.coarseLU.Factorize(cur.ToDense())
		// A nearly singular coarsest system falls back to a zero correction
		// per apply rather than failing construction; the Krylov accelerator
		// around the hierarchy reports the resulting stagnation.
		h.direct = h.coarseLU.Cond() < 1e14
	}
	return h, nil
}

// smoothedProlongator applies one damped-Jacobi step to the piecewise
// constant aggregate injection. The smoothing spreads the aggregate basis
// over the neighboring rows, so prolonged corrections no longer jump at
// aggregate boundaries. Rows of excluded vertices stay empty.
func smoothedProlongator(A utils.CSR, am AggregatesMap, nCoarse int) utils.CSR {
	dok := utils.NewDOK(A.Rows(), nCoarse)
	for i := 0; i < A.Rows(); i++ {
		if am[i] < 0 {
			continue
		}
		cols, vals := A.Row(i)
		var di float64
		for k, j := range cols {
			if j == i {
				di = vals[k]
			}
		}
		if di == 0 {
			dok.Add(i, am[i], 1)
			continue
		}
		for k, j := range cols {
			a := am[j]
			if a < 0 {
				continue
			}
			w := -prolongatorOmega * vals[k] / di
			if j == i {
				w++
			}
			dok.Add(i, a, w)
		}
	}
	return dok.ToCSR()
}

// galerkinProduct assembles the coarse matrix P^T A P from the fine matrix
// and the prolongator.
func galerkinProduct(A, P utils.CSR, nCoarse int) utils.CSR {
	dok := utils.NewDOK(nCoarse, nCoarse)
	for i := 0; i < A.Rows(); i++ {
		ri, vi := P.Row(i)
		if len(ri) == 0 {
			continue
		}
		cols, vals := A.Row(i)
		for k, j := range cols {
			rj, vj := P.Row(j)
			for ki, ci := range ri {
				for kj, cj := range rj {
					dok.Add(ci, cj, vi[ki]*vals[k]*vj[kj])
				}
			}
		}
	}
	return dok.ToCSR()
}

func (h *Hierarchy) Levels() int { return len(h.levels) + 1 }

// Apply runs one V-cycle: v ~= A^{-1} d from a zero initial guess.
func (h *Hierarchy) Apply(v, d []float64) {
	h.cycle(0, v, d)
}

func (h *Hierarchy) cycle(levelNum int, x, b []float64) {
	if levelNum == len(h.levels) {
		h.solveCoarsest(x, b)
		return
	}
	lev := h.levels[levelNum]
	for i := range x {
		x[i] = 0
	}
	for s := 0; s < h.preSteps; s++ {
		h.smoothStep(lev, x, b)
	}

	// Restrict the residual through the prolongator transpose.
	copy(lev.r, b)
	lev.A.MulVecSub(x, lev.r)
	for i := range lev.cb {
		lev.cb[i] = 0
	}
	for i := 0; i < lev.A.Rows(); i++ {
		cols, vals := lev.P.Row(i)
		for k, c := range cols {
			lev.cb[c] += vals[k] * lev.r[i]
		}
	}

	h.cycle(levelNum+1, lev.cx, lev.cb)

	// Prolongate and post-smooth.
	for i := 0; i < lev.A.Rows(); i++ {
		cols, vals := lev.P.Row(i)
		for k, c := range cols {
			x[i] += vals[k] * lev.cx[c]
		}
	}
	for s := 0; s < h.postSteps; s++ {
		h.smoothStep(lev, x, b)
	}
}

// smoothStep adds one smoother correction for the current residual b - A*x.
func (h *Hierarchy) smoothStep(lev *amgLevel, x, b []float64) {
	copy(lev.r, b)
	lev.A.MulVecSub(x, lev.r)
	lev.smoother.Apply(lev.dx, lev.r)
	for i := range x {
		x[i] += lev.dx[i]
	}
}

func (h *Hierarchy) solveCoarsest(x, b []float64) {
	if !h.direct {
		for i := range x {
			x[i] = 0
		}
		return
	}
	rhs := mat.NewVecDense(len(b), b)
	if err := h.coarseLU.SolveVecTo(h.coarseX, false, rhs); err != nil {
		for i := range x {
			x[i] = 0
		}
		return
	}
	copy(x, h.coarseX.RawVector().Data)
}
