package amg

import (
	"math"

	"github.com/kel85uk/opm-simulators/utils"
)

// Graph is the connectivity graph of a sparse matrix: one vertex per row, one
// edge per off-diagonal nonzero, weighted with the coupling magnitude. For
// block matrices the weight of edge (i,j) is the magnitude of the selected
// component (the pressure-pressure scalar) of block (i,j).
type Graph struct {
	N      int
	adj    []utils.Index // sorted neighbor lists, self edges excluded
	weight [][]float64   // |coupling|, parallel to adj
	diag   []float64     // |a_ii|
	maxOff []float64     // largest off-diagonal |coupling| per row
}

// NewGraphBlock builds the graph of a block matrix using the given block
// component for the edge weights.
func NewGraphBlock(m *utils.BlockSparse, component int) (g *Graph) {
	g = newGraph(m.NrBlocks)
	for i := 0; i < m.NrBlocks; i++ {
		for _, j := range m.RowCols(i) {
			v := math.Abs(m.GetBlockView(i, j).At(component, component))
			g.addEntry(i, j, v)
		}
	}
	return
}

// NewGraphCSR builds the graph of a scalar CSR matrix.
func NewGraphCSR(m utils.CSR) (g *Graph) {
	g = newGraph(m.Rows())
	for i := 0; i < g.N; i++ {
		cols, vals := m.Row(i)
		for k, j := range cols {
			g.addEntry(i, j, math.Abs(vals[k]))
		}
	}
	return
}

func newGraph(n int) *Graph {
	return &Graph{
		N:      n,
		adj:    make([]utils.Index, n),
		weight: make([][]float64, n),
		diag:   make([]float64, n),
		maxOff: make([]float64, n),
	}
}

// addEntry expects entries delivered row by row with ascending column index,
// which both matrix formats guarantee.
func (g *Graph) addEntry(i, j int, v float64) {
	if i == j {
		g.diag[i] = v
		return
	}
	g.adj[i] = append(g.adj[i], j)
	g.weight[i] = append(g.weight[i], v)
	if v > g.maxOff[i] {
		g.maxOff[i] = v
	}
}

func (g *Graph) Degree(i int) int { return len(g.adj[i]) }

// Neighbors returns the sorted neighbor list of vertex i. The returned slice
// is a view and must not be modified.
func (g *Graph) Neighbors(i int) utils.Index { return g.adj[i] }

// weightTo returns the weight of the directed edge i->j if it exists.
func (g *Graph) weightTo(i, j int) (float64, bool) {
	if pos := g.adj[i].Position(j); pos >= 0 {
		return g.weight[i][pos], true
	}
	return 0, false
}
