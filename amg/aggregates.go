package amg

import "fmt"

// Sentinel states of an AggregatesMap entry. Unaggregated is transient and
// must not survive BuildAggregates; Isolated permanently excludes a vertex
// from the coarse system.
const (
	Unaggregated = -1
	Isolated     = -2
)

// AggregatesMap assigns every fine vertex either a non-negative aggregate id
// or the Isolated sentinel.
type AggregatesMap []int

// AggregationCounts reports what BuildAggregates produced. Aggregates is the
// total number of aggregates (coarse dimension), OneAggregates the number of
// singletons among them, Skipped the number of vertices absorbed into a
// neighboring aggregate after their own seed grew too small.
type AggregationCounts struct {
	Aggregates    int
	Isolated      int
	OneAggregates int
	Skipped       int
}

// BuildAggregates partitions the graph vertices into aggregates by greedy
// breadth-first growth over strong connections. Vertices without any
// connectivity are marked Isolated. Seeds whose aggregate stays below
// MinAggregateSize are merged into an adjacent aggregate when one with room
// exists. On return every vertex is either aggregated or Isolated.
func BuildAggregates(g *Graph, c Criterion) (am AggregatesMap, counts AggregationCounts, err error) {
	am = make(AggregatesMap, g.N)
	for i := range am {
		am[i] = Unaggregated
	}
	for i := 0; i < g.N; i++ {
		if g.Degree(i) == 0 {
			am[i] = Isolated
			counts.Isolated++
		}
	}

	var (
		next  int
		sizes []int
		queue []int
	)
	for seed := 0; seed < g.N; seed++ {
		if am[seed] != Unaggregated {
			continue
		}
		am[seed] = next
		members := []int{seed}
		queue = append(queue[:0], seed)
		for len(queue) > 0 && len(members) < c.MaxAggregateSize {
			v := queue[0]
			queue = queue[1:]
			for k, nb := range g.adj[v] {
				if len(members) >= c.MaxAggregateSize {
					break
				}
				if am[nb] == Unaggregated && c.Strong(g, v, k) {
					am[nb] = next
					members = append(members, nb)
					queue = append(queue, nb)
				}
			}
		}
		if len(members) < c.MinAggregateSize {
			if target, ok := mergeTarget(g, c, am, members, sizes); ok {
				for _, v := range members {
					am[v] = target
				}
				sizes[target] += len(members)
				counts.Skipped += len(members)
				continue
			}
		}
		if len(members) == 1 {
			counts.OneAggregates++
		}
		sizes = append(sizes, len(members))
		counts.Aggregates++
		next++
	}

	for i, a := range am {
		if a == Unaggregated {
			err = fmt.Errorf("vertex %d left unaggregated", i)
			return
		}
	}
	return
}

// mergeTarget looks for an existing aggregate strongly connected to one of
// the members with enough room to absorb them all.
func mergeTarget(g *Graph, c Criterion, am AggregatesMap, members []int, sizes []int) (target int, ok bool) {
	own := am[members[0]]
	for _, v := range members {
		for k, nb := range g.adj[v] {
			a := am[nb]
			if a < 0 || a == own || !c.Strong(g, v, k) {
				continue
			}
			if sizes[a]+len(members) <= c.MaxAggregateSize {
				return a, true
			}
		}
	}
	return 0, false
}
