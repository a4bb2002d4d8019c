package krylov

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

const breakdownTol = 1e-300

func sqrt(v float64) float64 { return math.Sqrt(v) }

// CG runs the preconditioned conjugate gradient method until the defect norm
// has been reduced by the factor tol relative to the initial defect, or
// maxIter iterations have passed. x holds the initial guess on entry and the
// solution on return; b is left untouched.
func CG(op Operator, sp ScalarProduct, prec Preconditioner, x, b []float64, tol float64, maxIter, verbose int) (res Result) {
	var (
		n     = len(b)
		start = time.Now()
		r     = make([]float64, n)
		z     = make([]float64, n)
		p     = make([]float64, n)
		q     = make([]float64, n)
	)
	op.Apply(x, r)
	for i := range r {
		r[i] = b[i] - r[i]
	}
	norm0 := sp.Norm(r)
	if verbose > 0 {
		fmt.Printf("=== CG: initial defect %.6e\n", norm0)
	}
	if norm0 == 0 {
		res.Converged = true
		res.Reduction = 0
		res.Elapsed = time.Since(start)
		return
	}
	prec.Apply(z, r)
	copy(p, z)
	rho := sp.Dot(r, z)
	for it := 1; it <= maxIter; it++ {
		op.Apply(p, q)
		pq := sp.Dot(p, q)
		if math.Abs(pq) < breakdownTol || math.Abs(rho) < breakdownTol {
			res.Iterations = it - 1
			res.Reduction = sp.Norm(r) / norm0
			res.Elapsed = time.Since(start)
			return
		}
		alpha := rho / pq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		norm := sp.Norm(r)
		if verbose > 1 {
			fmt.Printf("    CG iteration %d, defect %.6e\n", it, norm)
		}
		res.Iterations = it
		res.Reduction = norm / norm0
		if res.Reduction <= tol {
			res.Converged = true
			break
		}
		prec.Apply(z, r)
		rhoNew := sp.Dot(r, z)
		beta := rhoNew / rho
		rho = rhoNew
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}
	res.Elapsed = time.Since(start)
	if verbose > 0 {
		fmt.Printf("=== CG: %d iterations, reduction %.6e, converged %v\n",
			res.Iterations, res.Reduction, res.Converged)
	}
	return
}

// BiCGStab runs the preconditioned BiConjugate Gradient Stabilized method
// with the same convergence contract as CG. Breakdowns of the recurrence
// terminate the iteration with Converged=false.
func BiCGStab(op Operator, sp ScalarProduct, prec Preconditioner, x, b []float64, tol float64, maxIter, verbose int) (res Result) {
	var (
		n     = len(b)
		start = time.Now()
		r     = make([]float64, n)
		rt    = make([]float64, n)
		p     = make([]float64, n)
		phat  = make([]float64, n)
		v     = make([]float64, n)
		s     = make([]float64, n)
		shat  = make([]float64, n)
		t     = make([]float64, n)
	)
	op.Apply(x, r)
	for i := range r {
		r[i] = b[i] - r[i]
	}
	norm0 := sp.Norm(r)
	if verbose > 0 {
		fmt.Printf("=== BiCGStab: initial defect %.6e\n", norm0)
	}
	if norm0 == 0 {
		res.Converged = true
		res.Reduction = 0
		res.Elapsed = time.Since(start)
		return
	}
	copy(rt, r)
	var (
		rho, rhoPrev, alpha, omega float64
	)
	for it := 1; it <= maxIter; it++ {
		rho = sp.Dot(rt, r)
		if math.Abs(rho) < breakdownTol {
			break // rho breakdown
		}
		if it == 1 {
			copy(p, r)
		} else {
			if math.Abs(omega) < breakdownTol {
				break // omega breakdown
			}
			beta := (rho / rhoPrev) * (alpha / omega)
			for i := range p {
				p[i] = r[i] + beta*(p[i]-omega*v[i])
			}
		}
		prec.Apply(phat, p)
		op.Apply(phat, v)
		den := sp.Dot(rt, v)
		if math.Abs(den) < breakdownTol {
			break
		}
		alpha = rho / den
		copy(s, r)
		floats.AddScaled(s, -alpha, v)
		norm := sp.Norm(s)
		res.Iterations = it
		if norm/norm0 <= tol {
			floats.AddScaled(x, alpha, phat)
			res.Reduction = norm / norm0
			res.Converged = true
			break
		}
		prec.Apply(shat, s)
		op.Apply(shat, t)
		tt := sp.Dot(t, t)
		if math.Abs(tt) < breakdownTol {
			break
		}
		omega = sp.Dot(t, s) / tt
		floats.AddScaled(x, alpha, phat)
		floats.AddScaled(x, omega, shat)
		copy(r, s)
		floats.AddScaled(r, -omega, t)
		rhoPrev = rho
		norm = sp.Norm(r)
		if verbose > 1 {
			fmt.Printf("    BiCGStab iteration %d, defect %.6e\n", it, norm)
		}
		res.Reduction = norm / norm0
		if res.Reduction <= tol {
			res.Converged = true
			break
		}
	}
	res.Elapsed = time.Since(start)
	if verbose > 0 {
		fmt.Printf("=== BiCGStab: %d iterations, reduction %.6e, converged %v\n",
			res.Iterations, res.Reduction, res.Converged)
	}
	return
}
