package parallel

// IndexedValue carries one scalar tagged with its global index across rank
// boundaries.
type IndexedValue struct {
	Global int
	Val    float64
}

// AggregatePair publishes the coarse (aggregate) global id of an owned fine
// vertex to the ranks holding copies of that vertex.
type AggregatePair struct {
	FineGlobal   int
	CoarseGlobal int
}

// Group is an in-process communicator for NP ranks, each expected to run on
// its own goroutine. Collectives funnel through rank 0 via per-rank channels,
// which makes the reduction order deterministic. All methods are synchronous
// collectives: every rank must call them in the same order.
type Group struct {
	NP int

	contrib    []chan float64
	contribInt []chan int
	result     []chan float64
	resultPair []chan [2]int

	Values     *MailBox[IndexedValue]
	Aggregates *MailBox[AggregatePair]
}

func NewGroup(NP int) (g *Group) {
	g = &Group{
		NP:         NP,
		contrib:    make([]chan float64, NP),
		contribInt: make([]chan int, NP),
		result:     make([]chan float64, NP),
		resultPair: make([]chan [2]int, NP),
		Values:     NewMailBox[IndexedValue](NP),
		Aggregates: NewMailBox[AggregatePair](NP),
	}
	for n := 0; n < NP; n++ {
		g.contrib[n] = make(chan float64, 1)
		g.contribInt[n] = make(chan int, 1)
		g.result[n] = make(chan float64, 1)
		g.resultPair[n] = make(chan [2]int, 1)
	}
	return
}

// AllReduceSum returns the sum of v over all ranks. Rank 0 accumulates the
// contributions in rank order.
func (g *Group) AllReduceSum(rank int, v float64) float64 {
	g.contrib[rank] <- v
	if rank == 0 {
		var total float64
		for r := 0; r < g.NP; r++ {
			total += <-g.contrib[r]
		}
		for r := 0; r < g.NP; r++ {
			g.result[r] <- total
		}
	}
	return <-g.result[rank]
}

// ScanSumInt returns the exclusive prefix sum and the total of v over ranks.
func (g *Group) ScanSumInt(rank, v int) (prefix, total int) {
	g.contribInt[rank] <- v
	if rank == 0 {
		vals := make([]int, g.NP)
		for r := 0; r < g.NP; r++ {
			vals[r] = <-g.contribInt[r]
		}
		running := 0
		for r := 0; r < g.NP; r++ {
			val := vals[r]
			vals[r] = running
			running += val
		}
		for r := 0; r < g.NP; r++ {
			g.resultPair[r] <- [2]int{vals[r], running}
		}
	}
	pair := <-g.resultPair[rank]
	return pair[0], pair[1]
}

func (g *Group) AllReduceSumInt(rank, v int) int {
	_, total := g.ScanSumInt(rank, v)
	return total
}

func (g *Group) Barrier(rank int) {
	g.AllReduceSumInt(rank, 0)
}
