package amg

import (
	"fmt"

	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// BlockSmoother is the block-matrix counterpart of Smoother: it computes an
// approximate correction from a defect on the fine (block) level.
type BlockSmoother interface {
	Apply(v, d *utils.BlockVector)
}

// NewBlockSmoother builds a fine-level smoother for a block matrix. ILUn
// degenerates to block ILU0 since level-of-fill patterns are only kept for
// the scalar coarse systems.
func NewBlockSmoother(m *utils.BlockSparse, args SmootherArgs, info parallel.Info) (BlockSmoother, error) {
	args.setDefaults()
	switch args.Kind {
	case Jacobi:
		return newBlockJacobi(m, args)
	case GaussSeidel:
		args.Relax = 1
		return newBlockSOR(m, args, false)
	case SOR:
		return newBlockSOR(m, args, false)
	case SSOR:
		return newBlockSOR(m, args, true)
	case ILU0, ILUn:
		return newBlockILU0(m, args)
	}
	return nil, fmt.Errorf("unsupported block smoother kind %v", args.Kind)
}

// invertDiagonalBlocks returns the inverses of the diagonal blocks.
func invertDiagonalBlocks(m *utils.BlockSparse) (dinv []utils.Matrix, err error) {
	dinv = make([]utils.Matrix, m.NrBlocks)
	for i := 0; i < m.NrBlocks; i++ {
		if !m.HasBlock(i, i) {
			return nil, fmt.Errorf("missing diagonal block in row %d", i)
		}
		if dinv[i], err = m.GetBlockView(i, i).Inverse(); err != nil {
			return nil, fmt.Errorf("singular diagonal block in row %d: %w", i, err)
		}
	}
	return
}

type blockJacobi struct {
	m    *utils.BlockSparse
	args SmootherArgs
	dinv []utils.Matrix
	r    *utils.BlockVector
	tmp  []float64
}

func newBlockJacobi(m *utils.BlockSparse, args SmootherArgs) (*blockJacobi, error) {
	dinv, err := invertDiagonalBlocks(m)
	if err != nil {
		return nil, err
	}
	br, _ := m.BlockDims()
	return &blockJacobi{
		m:    m,
		args: args,
		dinv: dinv,
		r:    utils.NewBlockVector(m.NrBlocks, br),
		tmp:  make([]float64, br),
	}, nil
}

func (s *blockJacobi) Apply(v, d *utils.BlockVector) {
	v.Zero()
	for it := 0; it < s.args.Iterations; it++ {
		s.m.ApplyDefect(v, d, s.r)
		for b := 0; b < s.m.NrBlocks; b++ {
			s.dinv[b].MulVec(s.r.Block(b), s.tmp)
			vb := v.Block(b)
			for k, val := range s.tmp {
				vb[k] += s.args.Relax * val
			}
		}
	}
}

type blockSOR struct {
	m         *utils.BlockSparse
	args      SmootherArgs
	symmetric bool
	dinv      []utils.Matrix
	rloc, tmp []float64
}

func newBlockSOR(m *utils.BlockSparse, args SmootherArgs, symmetric bool) (*blockSOR, error) {
	dinv, err := invertDiagonalBlocks(m)
	if err != nil {
		return nil, err
	}
	br, _ := m.BlockDims()
	return &blockSOR{
		m:         m,
		args:      args,
		symmetric: symmetric,
		dinv:      dinv,
		rloc:      make([]float64, br),
		tmp:       make([]float64, br),
	}, nil
}

func (s *blockSOR) Apply(v, d *utils.BlockVector) {
	v.Zero()
	for it := 0; it < s.args.Iterations; it++ {
		for i := 0; i < s.m.NrBlocks; i++ {
			s.update(i, v, d)
		}
		if s.symmetric {
			for i := s.m.NrBlocks - 1; i >= 0; i-- {
				s.update(i, v, d)
			}
		}
	}
}

// update performs the block SOR relaxation of row i:
// v_i += relax * Dinv_i * (d_i - sum_j A_ij v_j).
func (s *blockSOR) update(i int, v, d *utils.BlockVector) {
	copy(s.rloc, d.Block(i))
	for _, j := range s.m.RowCols(i) {
		s.m.GetBlockView(i, j).MulVecSub(v.Block(j), s.rloc)
	}
	s.dinv[i].MulVec(s.rloc, s.tmp)
	vb := v.Block(i)
	for k, val := range s.tmp {
		vb[k] += s.args.Relax * val
	}
}

// blockILU0 is an incomplete block LU factorization with zero fill: the
// factor shares the sparsity pattern of the matrix, strictly-lower blocks
// hold L (unit block diagonal), the rest holds U.
type blockILU0 struct {
	f       *utils.BlockSparse
	m       *utils.BlockSparse
	args    SmootherArgs
	uinv    []utils.Matrix // inverses of the factored diagonal blocks
	y       *utils.BlockVector
	r       *utils.BlockVector
	dv      *utils.BlockVector
	scratch []float64
}

func newBlockILU0(m *utils.BlockSparse, args SmootherArgs) (*blockILU0, error) {
	var (
		f   = m.Copy()
		n   = f.NrBlocks
		err error
	)
	uinv := make([]utils.Matrix, n)
	for i := 0; i < n; i++ {
		for _, k := range f.RowCols(i) {
			if k >= i {
				break
			}
			// A_ik <- A_ik * Uinv_kk
			lik := f.GetBlockView(i, k)
			prod := lik.Mul(uinv[k])
			copy(lik.Data(), prod.Data())
			for _, j := range f.RowCols(i) {
				if j > k && f.HasBlock(k, j) {
					// A_ij -= L_ik * U_kj
					f.GetBlockView(i, j).Subtract(lik.Mul(f.GetBlockView(k, j)))
				}
			}
		}
		if !f.HasBlock(i, i) {
			return nil, fmt.Errorf("missing diagonal block in row %d", i)
		}
		if uinv[i], err = f.GetBlockView(i, i).Inverse(); err != nil {
			return nil, fmt.Errorf("singular pivot block in row %d: %w", i, err)
		}
	}
	br, _ := m.BlockDims()
	return &blockILU0{
		f:       f,
		m:       m,
		args:    args,
		uinv:    uinv,
		y:       utils.NewBlockVector(n, br),
		r:       utils.NewBlockVector(n, br),
		dv:      utils.NewBlockVector(n, br),
		scratch: make([]float64, br),
	}, nil
}

// solve applies v = U^{-1} L^{-1} d with block forward/backward substitution.
func (s *blockILU0) solve(v, d *utils.BlockVector) {
	var (
		n = s.f.NrBlocks
	)
	for i := 0; i < n; i++ {
		yb := s.y.Block(i)
		copy(yb, d.Block(i))
		for _, k := range s.f.RowCols(i) {
			if k >= i {
				break
			}
			s.f.GetBlockView(i, k).MulVecSub(s.y.Block(k), yb)
		}
	}
	for i := n - 1; i >= 0; i-- {
		copy(s.scratch, s.y.Block(i))
		for _, j := range s.f.RowCols(i) {
			if j > i {
				s.f.GetBlockView(i, j).MulVecSub(v.Block(j), s.scratch)
			}
		}
		s.uinv[i].MulVec(s.scratch, v.Block(i))
	}
}

func (s *blockILU0) Apply(v, d *utils.BlockVector) {
	s.solve(v, d)
	if s.args.Relax != 1 {
		v.Scale(s.args.Relax)
	}
	for it := 1; it < s.args.Iterations; it++ {
		s.m.ApplyDefect(v, d, s.r)
		s.solve(s.dv, s.r)
		v.AddScaled(s.args.Relax, s.dv)
	}
}
