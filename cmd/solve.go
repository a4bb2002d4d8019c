/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/kel85uk/opm-simulators/InputParameters"
	"github.com/kel85uk/opm-simulators/cpr"
	"github.com/kel85uk/opm-simulators/krylov"
	"github.com/kel85uk/opm-simulators/parallel"
	"github.com/kel85uk/opm-simulators/reservoir"
	"github.com/kel85uk/opm-simulators/utils"
)

type ModelSolve struct {
	Nx, Ny, Nz int
	BlockSize  int
	NP         int
	Seed       int64
	ParamFile  string
	Profile    bool
}

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Runs the CPR preconditioned solver on a synthetic blackoil system",
	Long:  `Runs the CPR preconditioned solver on a synthetic blackoil system`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("solve called")
		ms := &ModelSolve{}
		ms.Nx, _ = cmd.Flags().GetInt("nx")
		ms.Ny, _ = cmd.Flags().GetInt("ny")
		ms.Nz, _ = cmd.Flags().GetInt("nz")
		ms.BlockSize, _ = cmd.Flags().GetInt("blockSize")
		ms.NP, _ = cmd.Flags().GetInt("np")
		ms.Seed, _ = cmd.Flags().GetInt64("seed")
		ms.ParamFile, _ = cmd.Flags().GetString("inputParametersFile")
		ms.Profile, _ = cmd.Flags().GetBool("profile")
		if ms.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		sp := processSolveInput(ms)
		RunSolve(ms, sp)
	},
}

func processSolveInput(ms *ModelSolve) (sp *InputParameters.SolverParameters) {
	sp = InputParameters.NewSolverParameters()
	if len(ms.ParamFile) == 0 {
		return
	}
	data, err := ioutil.ReadFile(ms.ParamFile)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "SPE-like synthetic case"
Smoother: ilu0
UseAmg: true
PressureAggregation: true
Accelerator: bicgstab
SolverTol: 1.e-2
MaxIter: 25
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	if err = sp.Parse(data); err != nil {
		panic(err)
	}
	return
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().IntP("nx", "x", 20, "grid cells in x")
	SolveCmd.Flags().IntP("ny", "y", 20, "grid cells in y")
	SolveCmd.Flags().IntP("nz", "z", 5, "grid cells in z")
	SolveCmd.Flags().IntP("blockSize", "b", 3, "unknowns per cell, pressure first")
	SolveCmd.Flags().IntP("np", "p", 1, "number of overlapping subdomains (in-process ranks)")
	SolveCmd.Flags().Int64P("seed", "s", 1, "seed for the synthetic permeability field")
	SolveCmd.Flags().StringP("inputParametersFile", "I", "", "YAML file for solver parameters like:\n\t- Smoother\n\t- SolverTol")
	SolveCmd.Flags().Bool("profile", false, "write a CPU profile for this run")
}

// RunSolve assembles the synthetic system, runs the accelerated solve on one
// or several in-process ranks and returns the global solution (assembled from
// the owner entries of each rank) together with the rank-0 iteration result.
func RunSolve(ms *ModelSolve, sp *InputParameters.SolverParameters) (x *utils.BlockVector, res krylov.Result) {
	var (
		problem = reservoir.NewProblem(ms.Nx, ms.Ny, ms.Nz, ms.BlockSize, ms.Seed)
	)
	sp.Print()
	fmt.Printf("[%d]\t\t\t= Cells\n", problem.NumCells())
	fmt.Printf("[%d]\t\t\t= Unknowns\n", problem.NumCells()*ms.BlockSize)
	if ms.NP <= 1 {
		var err error
		res, x, err = solveRank(problem.Matrix, problem.Rhs, parallel.SequentialInfo{}, sp)
		if err != nil {
			panic(err)
		}
		printResult(res)
		return
	}
	var (
		subs  = problem.Decompose(ms.NP)
		group = parallel.NewGroup(ms.NP)
		wg    sync.WaitGroup
		xs    = make([]*utils.BlockVector, ms.NP)
		ress  = make([]krylov.Result, ms.NP)
		errs  = make([]error, ms.NP)
	)
	for r := 0; r < ms.NP; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			info := parallel.NewOverlapInfo(group, r, subs[r].Entries)
			ress[r], xs[r], errs[r] = solveRank(subs[r].Matrix, subs[r].Rhs, info, sp)
		}(r)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			panic(err)
		}
	}
	x = utils.NewBlockVector(problem.NumCells(), ms.BlockSize)
	for r := 0; r < ms.NP; r++ {
		for l, e := range subs[r].Entries {
			if e.Attr == parallel.AttrOwner {
				copy(x.Block(e.Global), xs[r].Block(l))
			}
		}
	}
	res = ress[0]
	printResult(res)
	return
}

// solveRank runs the outer accelerated solve for one rank's share of the
// system. Collective when info is overlapping.
func solveRank(m *utils.BlockSparse, b *utils.BlockVector, info parallel.Info,
	sp *InputParameters.SolverParameters) (res krylov.Result, x *utils.BlockVector, err error) {
	var (
		cfg   = sp.Config()
		br, _ = m.BlockDims()
	)
	args, err := sp.SmootherArgs()
	if err != nil {
		return
	}
	crit, err := sp.Criterion()
	if err != nil {
		return
	}
	op := cpr.NewOperator(m, info)
	prec, err := cpr.NewBlackoilAmg(cfg, op, crit, args)
	if err != nil {
		return
	}
	sprod, err := krylov.NewScalarProduct(info, br)
	if err != nil {
		return
	}
	verbose := 0
	if sp.Verbose && info.Rank() == 0 {
		verbose = 1
	}
	x = utils.NewBlockVector(m.NrBlocks, br)
	prec.Pre(x, b)
	if cfg.UseBiCGStab {
		res = krylov.BiCGStab(cpr.FlatOperator{Op: op}, sprod, cpr.FlatPreconditioner{P: prec},
			x.Data, b.Data, sp.OuterTol, sp.OuterMaxIter, verbose)
	} else {
		res = krylov.CG(cpr.FlatOperator{Op: op}, sprod, cpr.FlatPreconditioner{P: prec},
			x.Data, b.Data, sp.OuterTol, sp.OuterMaxIter, verbose)
	}
	prec.Post(x)
	return
}

func printResult(res krylov.Result) {
	fmt.Printf("converged = %v, iterations = %d, reduction = %8.2e, elapsed = %v\n",
		res.Converged, res.Iterations, res.Reduction, res.Elapsed)
}
