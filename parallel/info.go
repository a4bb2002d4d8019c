package parallel

// Category describes the execution mode of an operator, preconditioner or
// scalar product. The outer Krylov solver uses it to select compatible pieces.
type Category int

const (
	Sequential Category = iota
	Overlapping
)

func (c Category) String() string {
	switch c {
	case Sequential:
		return "sequential"
	case Overlapping:
		return "overlapping"
	}
	return "unknown"
}

// Attribute classifies a local index within a domain decomposition.
type Attribute uint8

const (
	AttrOwner Attribute = iota
	AttrOverlap
	AttrCopy
)

// Info provides the communication primitives the solver core needs: index
// classification, global index lookup and synchronous collectives. All
// collective methods (Sum, SumInt, CopyOwnerToAll) must be called by every
// rank of the group in the same order.
type Info interface {
	Rank() int
	Size() int
	Category() Category

	Sum(v float64) float64
	SumInt(v int) int

	Attribute(local int) Attribute
	Owner(local int) bool
	GlobalIndex(local int) int

	BuildGlobalLookup(size int)
	FreeGlobalLookup()
	HasGlobalLookup() bool
	LocalIndex(global int) (int, bool)

	// CopyOwnerToAll overwrites non-owner entries with the owner's value.
	// The affected scalars live at vals[l*stride+offset] for local index l.
	CopyOwnerToAll(vals []float64, stride, offset int)
}

// SequentialInfo is the trivial single-process information object. Every
// index is owned, reductions are the identity and synchronization is a no-op.
type SequentialInfo struct{}

func (SequentialInfo) Rank() int          { return 0 }
func (SequentialInfo) Size() int          { return 1 }
func (SequentialInfo) Category() Category { return Sequential }

func (SequentialInfo) Sum(v float64) float64 { return v }
func (SequentialInfo) SumInt(v int) int      { return v }

func (SequentialInfo) Attribute(int) Attribute { return AttrOwner }
func (SequentialInfo) Owner(int) bool          { return true }
func (SequentialInfo) GlobalIndex(l int) int   { return l }

func (SequentialInfo) BuildGlobalLookup(int) {}
func (SequentialInfo) FreeGlobalLookup()     {}
func (SequentialInfo) HasGlobalLookup() bool { return true }
func (SequentialInfo) LocalIndex(global int) (int, bool) {
	return global, true
}

func (SequentialInfo) CopyOwnerToAll([]float64, int, int) {}
