package amg

import (
	"fmt"
	"math"
	"sort"

	"github.com/kel85uk/opm-simulators/utils"
)

// iluFactor holds a row-wise incomplete LU factorization: a unit lower
// triangle L and an upper triangle U sharing one sparsity structure per row.
// Column indices within a row are sorted and the diagonal is part of U.
type iluFactor struct {
	n       int
	indptr  []int
	ind     []int
	data    []float64
	diagPos []int // position of the diagonal entry within each row
	relax   float64
	iters   int
	m       utils.CSR // the original matrix, for multi-sweep application
	r       []float64
}

func newScalarILU0(m utils.CSR, args SmootherArgs) (*iluFactor, error) {
	var (
		raw = m.RawMatrix()
		n   = m.Rows()
	)
	f := &iluFactor{
		n:       n,
		indptr:  append([]int{}, raw.Indptr...),
		ind:     append([]int{}, raw.Ind...),
		data:    append([]float64{}, raw.Data...),
		diagPos: make([]int, n),
		relax:   args.Relax,
		iters:   args.Iterations,
		m:       m,
		r:       make([]float64, n),
	}
	if err := f.factorize(); err != nil {
		return nil, err
	}
	return f, nil
}

// newScalarILUn performs a level-of-fill symbolic factorization up to
// args.FillLevel, then reuses the numeric ILU elimination on the widened
// pattern. FillLevel 0 reproduces ILU0.
func newScalarILUn(m utils.CSR, args SmootherArgs) (*iluFactor, error) {
	var (
		n      = m.Rows()
		levels = make([]map[int]int, n) // column -> fill level per factored row
	)
	for i := 0; i < n; i++ {
		cols, _ := m.Row(i)
		row := make(map[int]int, len(cols))
		for _, j := range cols {
			row[j] = 0
		}
		// Symbolic elimination against the already-processed rows.
		for {
			k, klev, found := nextPivot(row, i)
			if !found {
				break
			}
			for j, jlev := range levels[k] {
				if j <= k {
					continue
				}
				lev := klev + jlev + 1
				if cur, ok := row[j]; ok {
					if lev < cur {
						row[j] = lev
					}
				} else if lev <= args.FillLevel {
					row[j] = lev
				}
			}
			// Mark processed by biasing below zero; restored after the loop.
			row[k] = -klev - 1
		}
		for j, lev := range row {
			if lev < 0 {
				row[j] = -lev - 1
			}
		}
		levels[i] = row
	}

	f := &iluFactor{
		n:       n,
		indptr:  make([]int, n+1),
		diagPos: make([]int, n),
		relax:   args.Relax,
		iters:   args.Iterations,
		m:       m,
		r:       make([]float64, n),
	}
	if f.relax == 0 {
		f.relax = 1
	}
	if f.iters == 0 {
		f.iters = 1
	}
	for i := 0; i < n; i++ {
		cols := make([]int, 0, len(levels[i]))
		for j := range levels[i] {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			f.ind = append(f.ind, j)
			f.data = append(f.data, m.At(i, j))
		}
		f.indptr[i+1] = len(f.ind)
	}
	if err := f.factorize(); err != nil {
		return nil, err
	}
	return f, nil
}

// nextPivot returns the smallest unprocessed column k < i in the working row.
func nextPivot(row map[int]int, i int) (k, lev int, found bool) {
	k = i
	for j, l := range row {
		if l >= 0 && j < i && j < k {
			k, lev, found = j, l, true
		}
	}
	return
}

// factorize runs the IKJ incomplete elimination in place over the stored
// pattern. Entries outside the pattern are dropped.
func (f *iluFactor) factorize() error {
	for i := 0; i < f.n; i++ {
		start, end := f.indptr[i], f.indptr[i+1]
		f.diagPos[i] = -1
		for kp := start; kp < end; kp++ {
			k := f.ind[kp]
			if k >= i {
				break
			}
			dk := f.data[f.diagPos[k]]
			if math.Abs(dk) < 1e-300 {
				return fmt.Errorf("zero pivot in ILU factorization at row %d", k)
			}
			lik := f.data[kp] / dk
			f.data[kp] = lik
			for jp := kp + 1; jp < end; jp++ {
				if pos := f.find(k, f.ind[jp]); pos >= 0 {
					f.data[jp] -= lik * f.data[pos]
				}
			}
		}
		for kp := start; kp < end; kp++ {
			if f.ind[kp] == i {
				f.diagPos[i] = kp
				break
			}
		}
		if f.diagPos[i] < 0 {
			return fmt.Errorf("missing diagonal in row %d", i)
		}
	}
	return nil
}

// find locates column j in row k by binary search over the sorted pattern.
func (f *iluFactor) find(k, j int) int {
	lo, hi := f.indptr[k], f.indptr[k+1]
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case f.ind[mid] == j:
			return mid
		case f.ind[mid] < j:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// solve performs the forward/backward substitution v = U^{-1} L^{-1} d.
func (f *iluFactor) solve(v, d []float64) {
	for i := 0; i < f.n; i++ {
		sum := d[i]
		for kp := f.indptr[i]; kp < f.diagPos[i]; kp++ {
			sum -= f.data[kp] * v[f.ind[kp]]
		}
		v[i] = sum
	}
	for i := f.n - 1; i >= 0; i-- {
		sum := v[i]
		for kp := f.diagPos[i] + 1; kp < f.indptr[i+1]; kp++ {
			sum -= f.data[kp] * v[f.ind[kp]]
		}
		v[i] = sum / f.data[f.diagPos[i]]
	}
}

func (f *iluFactor) Apply(v, d []float64) {
	f.solve(v, d)
	if f.relax != 1 {
		for i := range v {
			v[i] *= f.relax
		}
	}
	for it := 1; it < f.iters; it++ {
		copy(f.r, d)
		f.m.MulVecSub(v, f.r)
		dv := make([]float64, f.n)
		f.solve(dv, f.r)
		for i := range v {
			v[i] += f.relax * dv[i]
		}
	}
}
