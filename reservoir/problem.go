// Package reservoir generates synthetic blackoil linear systems on a
// structured grid: a heterogeneous two-point flux discretization with a
// pressure unknown and simplified saturation couplings per cell, plus an
// injector/producer well pair. The systems exercise the preconditioner
// without pulling in deck parsing or a full simulator.
package reservoir

import (
	"math"
	"math/rand"

	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

const (
	permSigma       = 1.0  // log-normal spread of the permeability field
	satCoupling     = 0.1  // saturation-equation sensitivity to pressure
	compressibility = 0.05 // pressure-equation sensitivity to saturations
	wellIndex       = 10.0
	wellRate        = 1.0
)

// Problem is a fully assembled blackoil linear system on an Nx×Ny×Nz grid
// with BlockSize unknowns per cell, pressure in component 0.
type Problem struct {
	Nx, Ny, Nz int
	BlockSize  int
	Matrix     *utils.BlockSparse
	Rhs        *utils.BlockVector
}

func (p *Problem) NumCells() int { return p.Nx * p.Ny * p.Nz }

// transmissibility is the harmonic two-point flux coefficient between two
// cells with the given permeabilities.
func transmissibility(ka, kb float64) float64 {
	return 2 * ka * kb / (ka + kb)
}

// NewProblem assembles the system for a log-normally distributed
// permeability field drawn from the given seed. The assembly is
// deterministic per seed.
func NewProblem(nx, ny, nz, blockSize int, seed int64) (p *Problem) {
	var (
		n   = nx * ny * nz
		rng = rand.New(rand.NewSource(seed))
	)
	p = &Problem{Nx: nx, Ny: ny, Nz: nz, BlockSize: blockSize}

	perm := make([]float64, n)
	for c := range perm {
		perm[c] = math.Exp(permSigma * rng.NormFloat64())
	}

	var addresses [][2]int
	for c := 0; c < n; c++ {
		addresses = append(addresses, [2]int{c, c})
		for _, d := range p.neighbors(c) {
			addresses = append(addresses, [2]int{c, d})
		}
	}
	m := utils.NewBlockSparse(n, n, blockSize, blockSize, addresses)
	for c := 0; c < n; c++ {
		diag := m.GetBlockView(c, c)
		for r := 1; r < blockSize; r++ {
			diag.Set(r, r, 1)
			diag.Set(0, r, compressibility)
		}
		for _, d := range p.neighbors(c) {
			var (
				T   = transmissibility(perm[c], perm[d])
				off = m.GetBlockView(c, d)
			)
			off.Set(0, 0, -T)
			diag.AddAt(0, 0, T)
			for r := 1; r < blockSize; r++ {
				off.Set(r, 0, -satCoupling*T)
				diag.AddAt(r, 0, satCoupling*T)
			}
		}
	}
	p.Matrix = m

	// Injector and producer in opposite corners.
	inj, prod := 0, n-1
	m.GetBlockView(inj, inj).AddAt(0, 0, wellIndex)
	m.GetBlockView(prod, prod).AddAt(0, 0, wellIndex)

	p.Rhs = utils.NewBlockVector(n, blockSize)
	p.Rhs.SetComponent(inj, 0, wellRate)
	p.Rhs.SetComponent(prod, 0, -wellRate)
	for c := 0; c < n; c++ {
		for r := 1; r < blockSize; r++ {
			p.Rhs.AddComponent(c, r, 0.01*rng.NormFloat64())
		}
	}
	return
}

// neighbors lists the stencil neighbors of cell c in ascending order of the
// row-major cell index.
func (p *Problem) neighbors(c int) (nbs []int) {
	var (
		i = c % p.Nx
		j = (c / p.Nx) % p.Ny
		k = c / (p.Nx * p.Ny)
	)
	if k > 0 {
		nbs = append(nbs, c-p.Nx*p.Ny)
	}
	if j > 0 {
		nbs = append(nbs, c-p.Nx)
	}
	if i > 0 {
		nbs = append(nbs, c-1)
	}
	if i < p.Nx-1 {
		nbs = append(nbs, c+1)
	}
	if j < p.Ny-1 {
		nbs = append(nbs, c+p.Nx)
	}
	if k < p.Nz-1 {
		nbs = append(nbs, c+p.Nx*p.Ny)
	}
	return
}

// SubDomain is one rank's share of a decomposed problem: the local block
// matrix and right-hand side over the extended (owner plus halo) cell range,
// and the index entries describing the overlap.
type SubDomain struct {
	Matrix  *utils.BlockSparse
	Rhs     *utils.BlockVector
	Entries []parallel.IndexEntry
}

// Decompose splits the cells into np contiguous slabs, each extended by a
// one-layer halo of copy cells, so the stencil of every owned cell is local.
func (p *Problem) Decompose(np int) (subs []*SubDomain) {
	var (
		n    = p.NumCells()
		halo = p.Nx * p.Ny
		bs   = p.BlockSize
	)
	cut := make([]int, np+1)
	for r := 0; r <= np; r++ {
		cut[r] = r * n / np
	}
	extent := func(r int) (start, end int) {
		start, end = cut[r]-halo, cut[r+1]+halo
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		return
	}

	subs = make([]*SubDomain, np)
	for r := 0; r < np; r++ {
		start, end := extent(r)
		nl := end - start

		entries := make([]parallel.IndexEntry, nl)
		for l := 0; l < nl; l++ {
			var (
				g    = start + l
				attr = parallel.AttrCopy
			)
			if g >= cut[r] && g < cut[r+1] {
				attr = parallel.AttrOwner
			}
			shared := false
			for q := 0; q < np && !shared; q++ {
				if q == r {
					continue
				}
				qs, qe := extent(q)
				shared = g >= qs && g < qe
			}
			entries[l] = parallel.IndexEntry{Global: g, Attr: attr, Shared: shared}
		}

		var addresses [][2]int
		for g := start; g < end; g++ {
			addresses = append(addresses, [2]int{g - start, g - start})
			for _, d := range p.neighbors(g) {
				if d >= start && d < end {
					addresses = append(addresses, [2]int{g - start, d - start})
				}
			}
		}
		m := utils.NewBlockSparse(nl, nl, bs, bs, addresses)
		rhs := utils.NewBlockVector(nl, bs)
		for g := start; g < end; g++ {
			l := g - start
			copy(m.GetBlockView(l, l).Data(), p.Matrix.GetBlockView(g, g).Data())
			for _, d := range p.neighbors(g) {
				if d >= start && d < end {
					copy(m.GetBlockView(l, d-start).Data(), p.Matrix.GetBlockView(g, d).Data())
				}
			}
			copy(rhs.Block(l), p.Rhs.Block(g))
		}
		subs[r] = &SubDomain{Matrix: m, Rhs: rhs, Entries: entries}
	}
	return
}
