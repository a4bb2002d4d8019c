package utils

import (
	"fmt"
	"sort"
)

// BlockSparse represents a sparse block matrix with fixed-size dense blocks.
// Only blocks provided via addresses are allocated; all other blocks are
// implicitly zero. The allocated column indices of each block row are kept
// sorted so that row traversal is deterministic.
type BlockSparse struct {
	// Global block-matrix dimensions (in block counts).
	NrBlocks, NcBlocks int

	// Each block has dimensions blockRows x blockCols.
	blockRows, blockCols int

	// Contiguous storage for all allocated (nonzero) blocks.
	data []float64

	// addresses maps a block coordinate [i,j] to the offset (in floats) within data.
	addresses map[[2]int]int

	// rowCols holds, per block row, the sorted column indices of allocated blocks.
	rowCols []Index
}

// NewBlockSparse creates a new BlockSparse for a sparse block matrix.
// The input parameter addresses is a slice of [2]int specifying the
// coordinates of each nonzero block. The total number of allocated blocks is
// len(addresses). All other blocks (not in addresses) are implicitly zero.
func NewBlockSparse(nrBlocks, ncBlocks, blockRows, blockCols int, addresses [][2]int) *BlockSparse {
	totalBlocks := len(addresses)
	totalFloats := totalBlocks * blockRows * blockCols
	data := make([]float64, totalFloats)
	addrMap := make(map[[2]int]int, totalBlocks)
	rowCols := make([]Index, nrBlocks)
	// Each nonzero block gets a contiguous slice of length blockRows*blockCols.
	for i, addr := range addresses {
		if _, exists := addrMap[addr]; exists {
			panic(fmt.Sprintf("duplicate block address (%d,%d)", addr[0], addr[1]))
		}
		offset := i * blockRows * blockCols
		addrMap[addr] = offset
		rowCols[addr[0]] = append(rowCols[addr[0]], addr[1])
	}
	for i := range rowCols {
		sort.Ints(rowCols[i])
	}
	return &BlockSparse{
		NrBlocks:  nrBlocks,
		NcBlocks:  ncBlocks,
		blockRows: blockRows,
		blockCols: blockCols,
		data:      data,
		addresses: addrMap,
		rowCols:   rowCols,
	}
}

// BlockDims returns the dimensions of the individual dense blocks.
func (bs *BlockSparse) BlockDims() (rows, cols int) {
	return bs.blockRows, bs.blockCols
}

func (bs *BlockSparse) NumBlocks() int { return len(bs.addresses) }

func (bs *BlockSparse) HasBlock(i, j int) bool {
	_, ok := bs.addresses[[2]int{i, j}]
	return ok
}

// RowCols returns the sorted column indices of the allocated blocks in block
// row i. The returned slice is owned by the matrix and must not be modified.
func (bs *BlockSparse) RowCols(i int) Index {
	return bs.rowCols[i]
}

// GetBlockView returns a Matrix view for the block at coordinate (i, j). The
// returned Matrix wraps the region of the contiguous data slice belonging to
// this block, so writes through the view modify the matrix. If (i,j) is not
// allocated, the function panics.
func (bs *BlockSparse) GetBlockView(i, j int) Matrix {
	key := [2]int{i, j}
	offset, ok := bs.addresses[key]
	if !ok {
		panic(fmt.Sprintf("GetBlockView (%d,%d) not allocated", i, j))
	}
	subData := bs.data[offset : offset+bs.blockRows*bs.blockCols]
	return NewMatrix(bs.blockRows, bs.blockCols, subData)
}

// Copy returns a deep copy with identical sparsity and block values.
func (bs *BlockSparse) Copy() (R *BlockSparse) {
	R = &BlockSparse{
		NrBlocks:  bs.NrBlocks,
		NcBlocks:  bs.NcBlocks,
		blockRows: bs.blockRows,
		blockCols: bs.blockCols,
		data:      make([]float64, len(bs.data)),
		addresses: make(map[[2]int]int, len(bs.addresses)),
		rowCols:   make([]Index, len(bs.rowCols)),
	}
	copy(R.data, bs.data)
	for k, v := range bs.addresses {
		R.addresses[k] = v
	}
	for i, cols := range bs.rowCols {
		R.rowCols[i] = append(Index{}, cols...)
	}
	return
}

// Apply computes y = A*x where x and y are block vectors whose BlockSize
// equals the block column/row count of the matrix.
func (bs *BlockSparse) Apply(x, y *BlockVector) {
	if x.BlockSize != bs.blockCols || y.BlockSize != bs.blockRows {
		panic(fmt.Sprintf("block size mismatch in Apply: matrix %dx%d blocks, x %d, y %d",
			bs.blockRows, bs.blockCols, x.BlockSize, y.BlockSize))
	}
	y.Zero()
	for i := 0; i < bs.NrBlocks; i++ {
		yb := y.Block(i)
		for _, j := range bs.rowCols[i] {
			offset := bs.addresses[[2]int{i, j}]
			xb := x.Block(j)
			for bi := 0; bi < bs.blockRows; bi++ {
				row := bs.data[offset+bi*bs.blockCols : offset+(bi+1)*bs.blockCols]
				var sum float64
				for bj, v := range row {
					sum += v * xb[bj]
				}
				yb[bi] += sum
			}
		}
	}
}

// ApplyDefect computes r = b - A*x.
func (bs *BlockSparse) ApplyDefect(x, b, r *BlockVector) {
	bs.Apply(x, r)
	for i, v := range b.Data {
		r.Data[i] = v - r.Data[i]
	}
}
