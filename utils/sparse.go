package utils

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

// DOK wraps a dictionary-of-keys sparse matrix, used while assembling coarse
// systems whose sparsity pattern is discovered incrementally.
type DOK struct {
	M *sparse.DOK
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{sparse.NewDOK(nr, nc)}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix      { return m.M.T() }

func (m DOK) Set(i, j int, val float64) { m.M.Set(i, j, val) }

func (m DOK) Add(i, j int, val float64) { m.M.Set(i, j, m.M.At(i, j)+val) }

func (m DOK) NNZ() int { return m.M.NNZ() }

// ToCSR converts to compressed sparse row storage with the column indices of
// each row sorted ascending, which the smoother sweeps and the incomplete
// factorizations rely on.
func (m DOK) ToCSR() (R CSR) {
	var (
		nr, nc = m.Dims()
	)
	type entry struct {
		j int
		v float64
	}
	rows := make([][]entry, nr)
	m.M.DoNonZero(func(i, j int, v float64) {
		rows[i] = append(rows[i], entry{j, v})
	})
	var (
		indptr = make([]int, nr+1)
		ind    []int
		data   []float64
	)
	for i := 0; i < nr; i++ {
		sort.Slice(rows[i], func(a, b int) bool { return rows[i][a].j < rows[i][b].j })
		for _, e := range rows[i] {
			ind = append(ind, e.j)
			data = append(data, e.v)
		}
		indptr[i+1] = len(ind)
	}
	R = CSR{sparse.NewCSR(nr, nc, indptr, ind, data)}
	return
}

// NewCSRFromPattern builds a zero-valued CSR with the given per-row column
// pattern. Each pattern row must be sorted ascending. Numeric entries are
// filled in afterwards with AddAt/SetAt, which keeps the sparsity fixed even
// where entries sum to zero.
func NewCSRFromPattern(nr, nc int, rows []Index) (R CSR) {
	var (
		indptr = make([]int, nr+1)
		nnz    int
	)
	for _, cols := range rows {
		nnz += len(cols)
	}
	ind := make([]int, 0, nnz)
	data := make([]float64, nnz)
	for i, cols := range rows {
		ind = append(ind, cols...)
		indptr[i+1] = len(ind)
	}
	R = CSR{sparse.NewCSR(nr, nc, indptr, ind, data)}
	return
}

// CSR wraps a compressed sparse row matrix. The scalar (pressure-only) coarse
// systems are stored in this format.
type CSR struct {
	M *sparse.CSR
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix      { return m.M.T() }

func (m CSR) NNZ() int { return m.M.NNZ() }

func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }

func (m CSR) Rows() int {
	r, _ := m.Dims()
	return r
}

// Row returns views of the column indices and values of row i.
func (m CSR) Row(i int) (cols []int, vals []float64) {
	raw := m.RawMatrix()
	start, end := raw.Indptr[i], raw.Indptr[i+1]
	return raw.Ind[start:end], raw.Data[start:end]
}

// AddAt accumulates val into the stored entry (i, j). The entry must be part
// of the sparsity pattern.
func (m CSR) AddAt(i, j int, val float64) {
	var (
		raw        = m.M.RawMatrix()
		start, end = raw.Indptr[i], raw.Indptr[i+1]
		pos        = Index(raw.Ind[start:end]).Position(j)
	)
	if pos < 0 {
		panic(fmt.Errorf("entry (%d, %d) outside of sparsity pattern", i, j))
	}
	raw.Data[start+pos] += val
}

// SetAt overwrites the stored entry (i, j), which must be part of the
// sparsity pattern.
func (m CSR) SetAt(i, j int, val float64) {
	var (
		raw        = m.M.RawMatrix()
		start, end = raw.Indptr[i], raw.Indptr[i+1]
		pos        = Index(raw.Ind[start:end]).Position(j)
	)
	if pos < 0 {
		panic(fmt.Errorf("entry (%d, %d) outside of sparsity pattern", i, j))
	}
	raw.Data[start+pos] = val
}

// Diagonal extracts the diagonal entries; absent entries read as zero.
func (m CSR) Diagonal() (d []float64) {
	var (
		nr, _ = m.Dims()
	)
	d = make([]float64, nr)
	for i := 0; i < nr; i++ {
		cols, vals := m.Row(i)
		for k, j := range cols {
			if j == i {
				d[i] = vals[k]
				break
			}
		}
	}
	return
}

// MulVec computes y = A*x.
func (m CSR) MulVec(x, y []float64) {
	var (
		raw   = m.RawMatrix()
		nr, _ = m.Dims()
	)
	for i := 0; i < nr; i++ {
		var sum float64
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			sum += raw.Data[k] * x[raw.Ind[k]]
		}
		y[i] = sum
	}
}

// MulVecSub computes y -= A*x.
func (m CSR) MulVecSub(x, y []float64) {
	var (
		raw   = m.RawMatrix()
		nr, _ = m.Dims()
	)
	for i := 0; i < nr; i++ {
		var sum float64
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			sum += raw.Data[k] * x[raw.Ind[k]]
		}
		y[i] -= sum
	}
}

// ToDense expands to a gonum dense matrix, used for the direct solve on the
// coarsest multigrid level.
func (m CSR) ToDense() (D *mat.Dense) {
	var (
		nr, nc = m.Dims()
	)
	D = mat.NewDense(nr, nc, nil)
	raw := m.RawMatrix()
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			D.Set(i, raw.Ind[k], raw.Data[k])
		}
	}
	return
}
