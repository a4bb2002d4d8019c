package amg

import "fmt"

// StrengthKind selects the strength-of-connection test used during
// aggregation.
type StrengthKind int

const (
	// SymmetricStrength compares the product of the two couplings between a
	// vertex pair against the product of the diagonals.
	SymmetricStrength StrengthKind = iota
	// UnsymmetricStrength compares a coupling against the largest
	// off-diagonal coupling of its row.
	UnsymmetricStrength
)

func ParseStrengthKind(name string) (StrengthKind, error) {
	switch name {
	case "symmetric", "":
		return SymmetricStrength, nil
	case "unsymmetric":
		return UnsymmetricStrength, nil
	}
	return 0, fmt.Errorf("unknown strength-of-connection kind %q", name)
}

// Criterion bundles the parameters steering aggregation: the strength test,
// aggregate size bounds and the dimension below which coarsening stops.
type Criterion struct {
	Strength         StrengthKind
	Alpha            float64 // strength threshold
	MinAggregateSize int
	MaxAggregateSize int
	CoarsenTarget    int // stop coarsening below this dimension
	MaxLevels        int
	ComponentIndex   int // block component driving connectivity (the pressure)
}

func DefaultCriterion() Criterion {
	return Criterion{
		Strength:         SymmetricStrength,
		Alpha:            1.0 / 3.0,
		MinAggregateSize: 4,
		MaxAggregateSize: 6,
		CoarsenTarget:    1000,
		MaxLevels:        10,
	}
}

// Strong reports whether the k-th edge of vertex i in the graph is a strong
// connection under the criterion.
func (c Criterion) Strong(g *Graph, i, k int) bool {
	var (
		j   = g.adj[i][k]
		wij = g.weight[i][k]
	)
	switch c.Strength {
	case UnsymmetricStrength:
		return wij >= c.Alpha*g.maxOff[i] && wij > 0
	default:
		wji, ok := g.weightTo(j, i)
		if !ok {
			return false
		}
		return wij*wji >= c.Alpha*c.Alpha*g.diag[i]*g.diag[j] && wij*wji > 0
	}
}
