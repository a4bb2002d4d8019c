package utils

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

func NewRange(rmin, rmax int) (r Index) {
	var (
		size = rmax - rmin + 1 // INCLUSIVE RANGE
	)
	r = make(Index, size)
	for i := range r {
		r[i] = i + rmin
	}
	return
}

// Contains does a binary search, the receiver must be sorted ascending.
func (I Index) Contains(val int) bool {
	var (
		lo, hi = 0, len(I)
	)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case I[mid] == val:
			return true
		case I[mid] < val:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}

func (I Index) Position(val int) int {
	var (
		lo, hi = 0, len(I)
	)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case I[mid] == val:
			return mid
		case I[mid] < val:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

func (I Index) Max() (max int) {
	for i, val := range I {
		if i == 0 || val > max {
			max = val
		}
	}
	return
}
