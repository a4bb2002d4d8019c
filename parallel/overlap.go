package parallel

// IndexEntry describes one local index of an overlapping decomposition.
type IndexEntry struct {
	Global int
	Attr   Attribute
	Shared bool // the index exists on at least one other rank
}

// OverlapInfo is the distributed information object for an overlapping
// decomposition: a local-to-global index table with owner/overlap/copy
// attributes, backed by a Group for the collective operations.
type OverlapInfo struct {
	rank    int
	group   *Group
	Entries []IndexEntry
	lookup  map[int]int // global -> local, built on demand
}

func NewOverlapInfo(group *Group, rank int, entries []IndexEntry) *OverlapInfo {
	return &OverlapInfo{
		rank:    rank,
		group:   group,
		Entries: entries,
	}
}

func (o *OverlapInfo) Rank() int          { return o.rank }
func (o *OverlapInfo) Size() int          { return o.group.NP }
func (o *OverlapInfo) Category() Category { return Overlapping }

func (o *OverlapInfo) Sum(v float64) float64 { return o.group.AllReduceSum(o.rank, v) }
func (o *OverlapInfo) SumInt(v int) int      { return o.group.AllReduceSumInt(o.rank, v) }

func (o *OverlapInfo) Attribute(local int) Attribute { return o.Entries[local].Attr }
func (o *OverlapInfo) Owner(local int) bool          { return o.Entries[local].Attr == AttrOwner }
func (o *OverlapInfo) GlobalIndex(local int) int     { return o.Entries[local].Global }

func (o *OverlapInfo) BuildGlobalLookup(size int) {
	if o.lookup != nil {
		return
	}
	o.lookup = make(map[int]int, size)
	for l, e := range o.Entries {
		o.lookup[e.Global] = l
	}
}

func (o *OverlapInfo) FreeGlobalLookup() { o.lookup = nil }

func (o *OverlapInfo) HasGlobalLookup() bool { return o.lookup != nil }

func (o *OverlapInfo) LocalIndex(global int) (int, bool) {
	if o.lookup == nil {
		// Fallback scan keeps the call usable after an eager lookup release.
		for l, e := range o.Entries {
			if e.Global == global {
				return l, true
			}
		}
		return -1, false
	}
	l, ok := o.lookup[global]
	return l, ok
}

// CopyOwnerToAll broadcasts owner values of shared indices and overwrites the
// local non-owner entries with them. Collective.
func (o *OverlapInfo) CopyOwnerToAll(vals []float64, stride, offset int) {
	for l, e := range o.Entries {
		if e.Attr == AttrOwner && e.Shared {
			o.group.Values.PostToAll(o.rank, IndexedValue{
				Global: e.Global,
				Val:    vals[l*stride+offset],
			})
		}
	}
	o.group.Values.Deliver(o.rank)
	o.group.Barrier(o.rank)
	for _, msg := range o.group.Values.Receive(o.rank) {
		if l, ok := o.LocalIndex(msg.Global); ok && !o.Owner(l) {
			vals[l*stride+offset] = msg.Val
		}
	}
	o.group.Barrier(o.rank)
}

// CoarsenIndices builds the reduced information object for the coarse
// (aggregate) index space. Negative aggregate ids mark vertices excluded from
// the coarse system and are skipped. An aggregate is owned by this rank when
// at least one of its member vertices is owned. Owned aggregates receive
// globally unique ids via an exclusive prefix sum over ranks; ids of copy
// aggregates are then published by their owners across the overlap, which
// requires the fine-level global lookup to be in place. Collective.
func CoarsenIndices(fine Info, aggregates []int, nAggregates int) Info {
	o, ok := fine.(*OverlapInfo)
	if !ok {
		return SequentialInfo{}
	}

	attr := make([]Attribute, nAggregates)
	shared := make([]bool, nAggregates)
	for i := range attr {
		attr[i] = AttrCopy
	}
	for l, a := range aggregates {
		if a < 0 {
			continue
		}
		if o.Owner(l) {
			attr[a] = AttrOwner
		}
		if o.Entries[l].Shared {
			shared[a] = true
		}
	}

	nOwned := 0
	for _, at := range attr {
		if at == AttrOwner {
			nOwned++
		}
	}
	prefix, _ := o.group.ScanSumInt(o.rank, nOwned)

	globalID := make([]int, nAggregates)
	next := prefix
	for a := range globalID {
		if attr[a] == AttrOwner {
			globalID[a] = next
			next++
		} else {
			globalID[a] = -1
		}
	}

	// Publish aggregate ownership across the overlap boundary.
	for l, a := range aggregates {
		if a < 0 || !o.Owner(l) || !o.Entries[l].Shared {
			continue
		}
		o.group.Aggregates.PostToAll(o.rank, AggregatePair{
			FineGlobal:   o.GlobalIndex(l),
			CoarseGlobal: globalID[a],
		})
	}
	o.group.Aggregates.Deliver(o.rank)
	o.group.Barrier(o.rank)
	for _, msg := range o.group.Aggregates.Receive(o.rank) {
		l, ok := o.LocalIndex(msg.FineGlobal)
		if !ok || o.Owner(l) {
			continue
		}
		if a := aggregates[l]; a >= 0 && attr[a] != AttrOwner {
			globalID[a] = msg.CoarseGlobal
		}
	}
	o.group.Barrier(o.rank)

	entries := make([]IndexEntry, nAggregates)
	for a := 0; a < nAggregates; a++ {
		entries[a] = IndexEntry{Global: globalID[a], Attr: attr[a], Shared: shared[a]}
	}
	return NewOverlapInfo(o.group, o.rank, entries)
}
