package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"

	"github.com/kel85uk/opm-simulators/amg"
	"github.com/kel85uk/opm-simulators/cpr"
)

// Parameters obtained from the YAML input file
type SolverParameters struct {
	Title               string  `yaml:"Title"`
	PressureIndex       int     `yaml:"PressureIndex"`
	Smoother            string  `yaml:"Smoother"`
	Relax               float64 `yaml:"Relax"`
	SmootherIterations  int     `yaml:"SmootherIterations"`
	FillLevel           int     `yaml:"FillLevel"`
	UseAmg              bool    `yaml:"UseAmg"`
	PressureAggregation bool    `yaml:"PressureAggregation"`
	Accelerator         string  `yaml:"Accelerator"` // "bicgstab" or "cg"
	SolverTol           float64 `yaml:"SolverTol"`
	MaxIter             int     `yaml:"MaxIter"`
	Verbose             bool    `yaml:"Verbose"`
	Strength            string  `yaml:"Strength"` // "symmetric" or "unsymmetric"
	Alpha               float64 `yaml:"Alpha"`
	MinAggregateSize    int     `yaml:"MinAggregateSize"`
	MaxAggregateSize    int     `yaml:"MaxAggregateSize"`
	CoarsenTarget       int     `yaml:"CoarsenTarget"`
	MaxLevels           int     `yaml:"MaxLevels"`
	OuterTol            float64 `yaml:"OuterTol"`
	OuterMaxIter        int     `yaml:"OuterMaxIter"`
}

// NewSolverParameters returns the parameter block with every field at its
// default, ready for Parse to override.
func NewSolverParameters() (sp *SolverParameters) {
	var (
		crit = amg.DefaultCriterion()
		cfg  = cpr.DefaultConfig()
	)
	sp = &SolverParameters{
		Title:              "cpr",
		Smoother:           "ilu0",
		Relax:              1,
		SmootherIterations: 1,
		UseAmg:             cfg.UseAmg,
		Accelerator:        "bicgstab",
		SolverTol:          cfg.SolverTol,
		MaxIter:            cfg.MaxIter,
		Strength:           "symmetric",
		Alpha:              crit.Alpha,
		MinAggregateSize:   crit.MinAggregateSize,
		MaxAggregateSize:   crit.MaxAggregateSize,
		CoarsenTarget:      crit.CoarsenTarget,
		MaxLevels:          crit.MaxLevels,
		OuterTol:           1.e-6,
		OuterMaxIter:       100,
	}
	return
}

func (sp *SolverParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, sp)
}

// Config assembles the CPR parameter block.
func (sp *SolverParameters) Config() cpr.Config {
	return cpr.Config{
		UseAmg:              sp.UseAmg,
		PressureAggregation: sp.PressureAggregation,
		SolverTol:           sp.SolverTol,
		MaxIter:             sp.MaxIter,
		Verbose:             sp.Verbose,
		UseBiCGStab:         sp.Accelerator != "cg",
		PressureIndex:       sp.PressureIndex,
	}
}

// SmootherArgs validates and converts the smoother fields.
func (sp *SolverParameters) SmootherArgs() (args amg.SmootherArgs, err error) {
	kind, err := amg.ParseSmootherKind(sp.Smoother)
	if err != nil {
		return
	}
	args = amg.SmootherArgs{
		Kind:       kind,
		Relax:      sp.Relax,
		Iterations: sp.SmootherIterations,
		FillLevel:  sp.FillLevel,
	}
	return
}

// Criterion validates and converts the aggregation fields.
func (sp *SolverParameters) Criterion() (crit amg.Criterion, err error) {
	strength, err := amg.ParseStrengthKind(sp.Strength)
	if err != nil {
		return
	}
	crit = amg.Criterion{
		Strength:         strength,
		Alpha:            sp.Alpha,
		MinAggregateSize: sp.MinAggregateSize,
		MaxAggregateSize: sp.MaxAggregateSize,
		CoarsenTarget:    sp.CoarsenTarget,
		MaxLevels:        sp.MaxLevels,
		ComponentIndex:   sp.PressureIndex,
	}
	return
}

func (sp *SolverParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("[%d]\t\t\t\t= Pressure Index\n", sp.PressureIndex)
	fmt.Printf("[%s]\t\t\t= Smoother\n", sp.Smoother)
	fmt.Printf("%8.5f\t\t= Relax\n", sp.Relax)
	fmt.Printf("[%v]\t\t\t= Use AMG\n", sp.UseAmg)
	fmt.Printf("[%v]\t\t\t= Pressure Aggregation\n", sp.PressureAggregation)
	fmt.Printf("[%s]\t\t= Accelerator\n", sp.Accelerator)
	fmt.Printf("%8.2e\t\t= Coarse Solver Tolerance\n", sp.SolverTol)
	fmt.Printf("[%d]\t\t\t\t= Coarse Max Iterations\n", sp.MaxIter)
	fmt.Printf("[%s]\t\t= Strength of Connection\n", sp.Strength)
	fmt.Printf("%8.5f\t\t= Alpha\n", sp.Alpha)
	fmt.Printf("[%d,%d]\t\t\t= Aggregate Size Min,Max\n", sp.MinAggregateSize, sp.MaxAggregateSize)
	fmt.Printf("[%d]\t\t\t= Coarsen Target\n", sp.CoarsenTarget)
	fmt.Printf("%8.2e\t\t= Outer Tolerance\n", sp.OuterTol)
	fmt.Printf("[%d]\t\t\t= Outer Max Iterations\n", sp.OuterMaxIter)
}
