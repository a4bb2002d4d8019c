package cpr

import (
	"github.com/kel85uk/opm-simulators/amg"
	"github.com/kel85uk/opm-simulators/krylov"
	"github.com/kel85uk/opm-simulators/parallel"
)

// CoarseSolverPolicy produces the approximate inverse used on the pressure
// level: a Krylov accelerator preconditioned with either a scalar AMG
// hierarchy or a single scalar smoother, decided by the configuration.
type CoarseSolverPolicy struct {
	cfg          Config
	smootherArgs amg.SmootherArgs
	criterion    amg.Criterion
}

func NewCoarseSolverPolicy(cfg Config, args amg.SmootherArgs, crit amg.Criterion) *CoarseSolverPolicy {
	return &CoarseSolverPolicy{cfg: cfg, smootherArgs: args, criterion: crit}
}

// CreateCoarseLevelSolver binds a solver to the transfer policy's coarse
// operator and communication. Construction fails fast on an unsupported
// communication category or smoother kind.
func (p *CoarseSolverPolicy) CreateCoarseLevelSolver(transfer *LevelTransferPolicy) (s *CoarseSolver, err error) {
	var (
		info = transfer.CoarseInfo()
	)
	s = &CoarseSolver{
		op:          transfer.CoarseOperator(),
		info:        info,
		tol:         p.cfg.SolverTol,
		maxIter:     p.cfg.MaxIter,
		verbose:     p.cfg.Verbose,
		useBiCGStab: p.cfg.UseBiCGStab,
	}
	if s.sp, err = krylov.NewScalarProduct(info, 1); err != nil {
		return nil, err
	}
	if p.cfg.UseAmg {
		s.hierarchy, err = amg.NewHierarchy(transfer.CoarseMatrix(), p.criterion, p.smootherArgs, info)
	} else {
		s.smoother, err = amg.NewScalarSmoother(transfer.CoarseMatrix(), p.smootherArgs, info)
	}
	if err != nil {
		return nil, err
	}
	return
}

// CoarseSolver runs the configured accelerator on the coarse pressure
// system. Exactly one of hierarchy or smoother is set.
type CoarseSolver struct {
	op        *krylov.MatrixOperator
	info      parallel.Info
	sp        krylov.ScalarProduct
	hierarchy *amg.Hierarchy
	smoother  amg.Smoother

	tol         float64
	maxIter     int
	verbose     bool
	useBiCGStab bool
}

func (s *CoarseSolver) Category() parallel.Category { return s.info.Category() }

func (s *CoarseSolver) preconditioner() krylov.Preconditioner {
	if s.hierarchy != nil {
		return s.hierarchy
	}
	return s.smoother
}

// Apply solves the coarse system at the configured tolerance. Non-convergence
// is reported through res, never as a failure.
func (s *CoarseSolver) Apply(x, b []float64, res *krylov.Result) {
	s.ApplyWithTolerance(x, b, s.tol, res)
}

// ApplyWithTolerance solves to the given relative residual reduction.
func (s *CoarseSolver) ApplyWithTolerance(x, b []float64, tol float64, res *krylov.Result) {
	var (
		verbosity = 0
	)
	if s.verbose && s.info.Rank() == 0 {
		verbosity = 1
	}
	if s.useBiCGStab {
		*res = krylov.BiCGStab(s.op, s.sp, s.preconditioner(), x, b, tol, s.maxIter, verbosity)
	} else {
		*res = krylov.CG(s.op, s.sp, s.preconditioner(), x, b, tol, s.maxIter, verbosity)
	}
}
