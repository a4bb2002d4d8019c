package amg

import (
	"fmt"
	"math"

	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/utils"
)

// SmootherKind enumerates the supported smoother variants. The set is closed:
// smoother construction dispatches over this tag instead of an open type
// hierarchy.
type SmootherKind int

const (
	Jacobi SmootherKind = iota
	GaussSeidel
	SOR
	SSOR
	ILU0
	ILUn
)

func ParseSmootherKind(name string) (SmootherKind, error) {
	switch name {
	case "jacobi", "":
		return Jacobi, nil
	case "gauss-seidel", "gs":
		return GaussSeidel, nil
	case "sor":
		return SOR, nil
	case "ssor":
		return SSOR, nil
	case "ilu0":
		return ILU0, nil
	case "ilun", "ilu":
		return ILUn, nil
	}
	return 0, fmt.Errorf("unknown smoother kind %q", name)
}

func (k SmootherKind) String() string {
	switch k {
	case Jacobi:
		return "jacobi"
	case GaussSeidel:
		return "gauss-seidel"
	case SOR:
		return "sor"
	case SSOR:
		return "ssor"
	case ILU0:
		return "ilu0"
	case ILUn:
		return "ilun"
	}
	return "unknown"
}

// SmootherArgs carries the construction arguments shared by all smoother
// variants, the analogue of a smoother traits bundle.
type SmootherArgs struct {
	Kind       SmootherKind
	Relax      float64 // relaxation factor, 1 when unset
	Iterations int     // sweeps per application, 1 when unset
	FillLevel  int     // ILUn only
}

func (a *SmootherArgs) setDefaults() {
	if a.Relax == 0 {
		a.Relax = 1
	}
	if a.Iterations == 0 {
		a.Iterations = 1
	}
}

// Smoother computes an approximate correction v from a defect d, starting
// from a zero initial guess: v ~= A^{-1} d.
type Smoother interface {
	Apply(v, d []float64)
}

// NewScalarSmoother builds a smoother for a scalar CSR matrix from the
// argument bundle. The communication object is accepted for interface
// symmetry with the block constructor; all variants smooth locally.
func NewScalarSmoother(m utils.CSR, args SmootherArgs, info parallel.Info) (Smoother, error) {
	args.setDefaults()
	switch args.Kind {
	case Jacobi:
		return newScalarJacobi(m, args)
	case GaussSeidel:
		args.Relax = 1
		return &scalarSOR{m: m, args: args, symmetric: false}, nil
	case SOR:
		return &scalarSOR{m: m, args: args, symmetric: false}, nil
	case SSOR:
		return &scalarSOR{m: m, args: args, symmetric: true}, nil
	case ILU0:
		return newScalarILU0(m, args)
	case ILUn:
		return newScalarILUn(m, args)
	}
	return nil, fmt.Errorf("unsupported scalar smoother kind %v", args.Kind)
}

type scalarJacobi struct {
	m    utils.CSR
	args SmootherArgs
	dinv []float64
	r    []float64
}

func newScalarJacobi(m utils.CSR, args SmootherArgs) (*scalarJacobi, error) {
	var (
		d = m.Diagonal()
	)
	dinv := make([]float64, len(d))
	for i, v := range d {
		if math.Abs(v) < 1e-300 {
			return nil, fmt.Errorf("zero diagonal in row %d, Jacobi smoother not applicable", i)
		}
		dinv[i] = 1 / v
	}
	return &scalarJacobi{m: m, args: args, dinv: dinv, r: make([]float64, len(d))}, nil
}

func (s *scalarJacobi) Apply(v, d []float64) {
	for i := range v {
		v[i] = s.args.Relax * s.dinv[i] * d[i]
	}
	for it := 1; it < s.args.Iterations; it++ {
		copy(s.r, d)
		s.m.MulVecSub(v, s.r)
		for i := range v {
			v[i] += s.args.Relax * s.dinv[i] * s.r[i]
		}
	}
}

type scalarSOR struct {
	m         utils.CSR
	args      SmootherArgs
	symmetric bool
}

func (s *scalarSOR) Apply(v, d []float64) {
	for i := range v {
		v[i] = 0
	}
	for it := 0; it < s.args.Iterations; it++ {
		s.sweepForward(v, d)
		if s.symmetric {
			s.sweepBackward(v, d)
		}
	}
}

func (s *scalarSOR) sweepForward(v, d []float64) {
	n := s.m.Rows()
	for i := 0; i < n; i++ {
		s.update(i, v, d)
	}
}

func (s *scalarSOR) sweepBackward(v, d []float64) {
	for i := s.m.Rows() - 1; i >= 0; i-- {
		s.update(i, v, d)
	}
}

func (s *scalarSOR) update(i int, v, d []float64) {
	var (
		cols, vals = s.m.Row(i)
		sum        = d[i]
		diag       float64
	)
	for k, j := range cols {
		if j == i {
			diag = vals[k]
			continue
		}
		sum -= vals[k] * v[j]
	}
	if diag != 0 {
		v[i] += s.args.Relax * (sum/diag - v[i])
	}
}
