package cpr

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kel85uk/opm-simulators/amg"
	"github.com/kel85uk/opm-simulators/krylov"
	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// prolongDamp scales the coarse correction before it is added back to the
// fine pressure component.
const prolongDamp = 1.0

// OverlapVertex pairs a non-owned fine vertex with its aggregate.
type OverlapVertex struct {
	Vertex, Aggregate int
}

// buildOverlapVertices collects the overlap/copy vertices sorted by
// aggregate, so that all members of one aggregate are adjacent.
func buildOverlapVertices(n int, info parallel.Info, am amg.AggregatesMap) (overlap []OverlapVertex) {
	for v := 0; v < n; v++ {
		if info.Attribute(v) != parallel.AttrOwner {
			overlap = append(overlap, OverlapVertex{Vertex: v, Aggregate: am[v]})
		}
	}
	sort.Slice(overlap, func(i, j int) bool {
		return overlap[i].Aggregate < overlap[j].Aggregate
	})
	return
}

// buildCoarseSparsity assembles the per-row column pattern of the coarse
// matrix by walking the aggregated fine graph: every fine edge between two
// non-isolated aggregates produces a coarse entry. Isolated vertices are
// marked visited up front and never contribute. Owner vertices are scanned
// first, then the overlap vertices grouped by aggregate.
func buildCoarseSparsity(g *amg.Graph, am amg.AggregatesMap, nCoarse int, info parallel.Info) (rows []utils.Index) {
	var (
		visited = make([]bool, g.N)
		sets    = make([]map[int]struct{}, nCoarse)
	)
	for v := 0; v < g.N; v++ {
		if am[v] < 0 {
			visited[v] = true
		}
	}
	visit := func(v int) {
		a := am[v]
		if sets[a] == nil {
			sets[a] = map[int]struct{}{a: {}}
		}
		for _, nb := range g.Neighbors(v) {
			if ca := am[nb]; ca >= 0 {
				sets[a][ca] = struct{}{}
			}
		}
		visited[v] = true
	}
	for v := 0; v < g.N; v++ {
		if visited[v] || info.Attribute(v) != parallel.AttrOwner {
			continue
		}
		visit(v)
	}
	for _, ov := range buildOverlapVertices(g.N, info, am) {
		if ov.Aggregate < 0 || visited[ov.Vertex] {
			continue
		}
		visit(ov.Vertex)
	}
	rows = make([]utils.Index, nCoarse)
	for a, set := range sets {
		row := make(utils.Index, 0, len(set))
		for c := range set {
			row = append(row, c)
		}
		sort.Ints(row)
		rows[a] = row
	}
	return
}

// LevelTransferPolicy builds the scalar pressure-only system from the fine
// block operator, and moves defects down to it and corrections back up.
// CreateCoarseLevelSystem must run before the first move; after that,
// MoveToCoarseLevel / MoveToFineLevel cycles may repeat freely.
type LevelTransferPolicy struct {
	pressureIndex int
	aggregation   bool
	criterion     amg.Criterion

	fineInfo   parallel.Info
	coarseInfo parallel.Info
	ownsCoarse bool

	graph      *amg.Graph
	aggregates amg.AggregatesMap
	counts     amg.AggregationCounts

	coarseMatrix utils.CSR
	coarseOp     *krylov.MatrixOperator
	nCoarse      int
	lhs, rhs     []float64
}

func NewLevelTransferPolicy(pressureIndex int, aggregation bool, crit amg.Criterion) *LevelTransferPolicy {
	crit.ComponentIndex = pressureIndex
	return &LevelTransferPolicy{
		pressureIndex: pressureIndex,
		aggregation:   aggregation,
		criterion:     crit,
	}
}

// CreateCoarseLevelSystem extracts or aggregates the scalar pressure system
// from the fine operator and allocates the coarse solution/defect buffers.
func (p *LevelTransferPolicy) CreateCoarseLevelSystem(fine *Operator) (err error) {
	p.fineInfo = fine.Info()
	if p.aggregation {
		if err = p.createAggregated(fine.Getmat()); err != nil {
			return
		}
	} else {
		p.createDirect(fine.Getmat())
	}
	p.lhs = make([]float64, p.nCoarse)
	p.rhs = make([]float64, p.nCoarse)
	p.coarseOp = krylov.NewMatrixOperator(p.coarseMatrix, p.coarseInfo)
	return
}

// createDirect keeps the fine sparsity and takes the pressure-pressure
// scalar of each block. The coarse communication is the fine one, shared.
func (p *LevelTransferPolicy) createDirect(m *utils.BlockSparse) {
	var (
		n    = m.NrBlocks
		rows = make([]utils.Index, n)
	)
	for i := 0; i < n; i++ {
		rows[i] = m.RowCols(i)
	}
	p.coarseMatrix = utils.NewCSRFromPattern(n, n, rows)
	for i := 0; i < n; i++ {
		for _, j := range m.RowCols(i) {
			p.coarseMatrix.SetAt(i, j, m.GetBlockView(i, j).At(p.pressureIndex, p.pressureIndex))
		}
	}
	p.coarseInfo = p.fineInfo
	p.ownsCoarse = false
	p.nCoarse = n
	p.aggregates = nil
}

// createAggregated builds the connectivity graph, aggregates it, coarsens the
// index set for parallel runs and assembles the aggregated coarse matrix.
func (p *LevelTransferPolicy) createAggregated(m *utils.BlockSparse) (err error) {
	p.graph = amg.NewGraphBlock(m, p.pressureIndex)
	p.aggregates, p.counts, err = amg.BuildAggregates(p.graph, p.criterion)
	if err != nil {
		return
	}
	p.nCoarse = p.counts.Aggregates

	p.fineInfo.BuildGlobalLookup(m.NrBlocks)
	coarseInfo := parallel.CoarsenIndices(p.fineInfo, p.aggregates, p.nCoarse)
	p.fineInfo.FreeGlobalLookup()
	if coarseInfo.Category() == parallel.Overlapping {
		coarseInfo.BuildGlobalLookup(p.nCoarse)
	}

	rows := buildCoarseSparsity(p.graph, p.aggregates, p.nCoarse, p.fineInfo)
	p.coarseMatrix = utils.NewCSRFromPattern(p.nCoarse, p.nCoarse, rows)
	p.CalculateCoarseEntries(m)

	// The lookup is only worth carrying when further coarsening could still
	// consult it.
	if p.nCoarse < p.criterion.CoarsenTarget {
		coarseInfo.FreeGlobalLookup()
	}
	p.coarseInfo = coarseInfo
	p.ownsCoarse = true
	return
}

// CalculateCoarseEntries recomputes the numeric coarse entries from the fine
// matrix without touching the sparsity pattern: every fine pressure-pressure
// scalar whose row and column aggregates are both non-isolated is summed into
// the corresponding coarse entry.
func (p *LevelTransferPolicy) CalculateCoarseEntries(m *utils.BlockSparse) {
	raw := p.coarseMatrix.RawMatrix()
	for k := range raw.Data {
		raw.Data[k] = 0
	}
	for i := 0; i < m.NrBlocks; i++ {
		ci := p.aggregates[i]
		if ci < 0 {
			continue
		}
		for _, j := range m.RowCols(i) {
			cj := p.aggregates[j]
			if cj < 0 {
				continue
			}
			p.coarseMatrix.AddAt(ci, cj, m.GetBlockView(i, j).At(p.pressureIndex, p.pressureIndex))
		}
	}
}

// MoveToCoarseLevel restricts the pressure component of the fine defect into
// the coarse right-hand side and clears the coarse solution buffer.
func (p *LevelTransferPolicy) MoveToCoarseLevel(fineDefect *utils.BlockVector) {
	for k := range p.rhs {
		p.rhs[k] = 0
	}
	if p.aggregates == nil {
		for v := 0; v < fineDefect.NBlocks; v++ {
			p.rhs[v] = fineDefect.Component(v, p.pressureIndex)
		}
	} else {
		for v := 0; v < fineDefect.NBlocks; v++ {
			if a := p.aggregates[v]; a >= 0 {
				p.rhs[a] += fineDefect.Component(v, p.pressureIndex)
			}
		}
	}
	for k := range p.lhs {
		p.lhs[k] = 0
	}
}

// MoveToFineLevel prolongs the coarse solution into the pressure component of
// the fine correction. Isolated vertices receive nothing. In aggregated
// parallel runs the updated fine vector is re-synchronized, since the
// coarse-to-fine map alone is not consistent across the overlap.
func (p *LevelTransferPolicy) MoveToFineLevel(fineCorrection *utils.BlockVector) {
	floats.Scale(prolongDamp, p.lhs)
	if p.aggregates == nil {
		for v := 0; v < fineCorrection.NBlocks; v++ {
			fineCorrection.AddComponent(v, p.pressureIndex, p.lhs[v])
		}
		return
	}
	for v := 0; v < fineCorrection.NBlocks; v++ {
		if a := p.aggregates[v]; a >= 0 {
			fineCorrection.AddComponent(v, p.pressureIndex, p.lhs[a])
		}
	}
	if p.fineInfo.Category() == parallel.Overlapping {
		p.fineInfo.CopyOwnerToAll(fineCorrection.Data, fineCorrection.BlockSize, p.pressureIndex)
	}
}

func (p *LevelTransferPolicy) CoarseOperator() *krylov.MatrixOperator { return p.coarseOp }
func (p *LevelTransferPolicy) CoarseMatrix() utils.CSR                { return p.coarseMatrix }
func (p *LevelTransferPolicy) CoarseInfo() parallel.Info              { return p.coarseInfo }
func (p *LevelTransferPolicy) CoarseDim() int                         { return p.nCoarse }

func (p *LevelTransferPolicy) Lhs() []float64 { return p.lhs }
func (p *LevelTransferPolicy) Rhs() []float64 { return p.rhs }

func (p *LevelTransferPolicy) Aggregates() amg.AggregatesMap { return p.aggregates }
func (p *LevelTransferPolicy) Counts() amg.AggregationCounts { return p.counts }
func (p *LevelTransferPolicy) OwnsCoarseInfo() bool          { return p.ownsCoarse }
