package idstore

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/graphd/iterator"
	"github.com/hupe1980/graphd/model"
)

// idWidth is the on-disk size of one ID: 34 bits fit in five bytes.
const idWidth = 5

// array is one source's ascending ID sequence with random access.
type array interface {
	// len returns the number of IDs held.
	len() uint64

	// at returns the i-th smallest ID. i must be < len().
	at(i uint64) model.ID

	// search returns the index of the first ID >= id, or len() if none.
	search(id model.ID) uint64

	// contains tests membership.
	contains(id model.ID) bool

	// stepCost and searchCost are the budget charges for one at() and one
	// search() against this backing.
	stepCost() int64
	searchCost() int64
}

// appender is implemented by mutable backings.
type appender interface {
	// appendID adds an ID strictly greater than all present ones.
	appendID(id model.ID) error
}

// memArray is the small-source backing: a plain ascending slice.
type memArray struct {
	ids []model.ID
}

func (a *memArray) len() uint64          { return uint64(len(a.ids)) }
func (a *memArray) at(i uint64) model.ID { return a.ids[i] }

func (a *memArray) search(id model.ID) uint64 {
	return uint64(sort.Search(len(a.ids), func(k int) bool { return a.ids[k] >= id }))
}

func (a *memArray) contains(id model.ID) bool {
	i := a.search(id)
	return i < a.len() && a.ids[i] == id
}

func (a *memArray) stepCost() int64   { return iterator.CostMemoryStep }
func (a *memArray) searchCost() int64 { return iterator.CostBinarySearch }

func (a *memArray) appendID(id model.ID) error {
	if n := len(a.ids); n > 0 && a.ids[n-1] >= id {
		return fmt.Errorf("idstore: id %d not above current maximum %d", uint64(id), uint64(a.ids[n-1]))
	}
	a.ids = append(a.ids, id)
	return nil
}

// bitmapArray backs large dense sources with a 64-bit roaring bitmap.
// Rank and Select give the same random-access contract as a slice.
type bitmapArray struct {
	rb *roaring64.Bitmap
}

func newBitmapArray() *bitmapArray {
	return &bitmapArray{rb: roaring64.New()}
}

// bitmapFromMem converts a slice backing. Used by Compact.
func bitmapFromMem(a *memArray) *bitmapArray {
	b := newBitmapArray()
	for _, id := range a.ids {
		b.rb.Add(uint64(id))
	}
	b.rb.RunOptimize()
	return b
}

func (b *bitmapArray) len() uint64 { return b.rb.GetCardinality() }

func (b *bitmapArray) at(i uint64) model.ID {
	v, err := b.rb.Select(i)
	if err != nil {
		panic(fmt.Sprintf("idstore: bitmap select %d of %d: %v", i, b.rb.GetCardinality(), err))
	}
	return model.ID(v)
}

func (b *bitmapArray) search(id model.ID) uint64 {
	if id == 0 {
		return 0
	}
	// Rank counts members <= id-1, which is exactly the index of the first
	// member >= id.
	return b.rb.Rank(uint64(id) - 1)
}

func (b *bitmapArray) contains(id model.ID) bool {
	return b.rb.Contains(uint64(id))
}

func (b *bitmapArray) stepCost() int64   { return iterator.CostMemoryStep }
func (b *bitmapArray) searchCost() int64 { return iterator.CostBinarySearch }

func (b *bitmapArray) appendID(id model.ID) error {
	if !b.rb.IsEmpty() && model.ID(b.rb.Maximum()) >= id {
		return fmt.Errorf("idstore: id %d not above current maximum %d", uint64(id), b.rb.Maximum())
	}
	b.rb.Add(uint64(id))
	return nil
}

// fileArray is the persisted backing: five-byte big-endian IDs over a
// memory-mapped region. It is immutable.
type fileArray struct {
	data []byte
	n    uint64
}

func newFileArray(data []byte) (*fileArray, error) {
	if len(data)%idWidth != 0 {
		return nil, fmt.Errorf("idstore: array payload length %d not a multiple of %d", len(data), idWidth)
	}
	return &fileArray{data: data, n: uint64(len(data) / idWidth)}, nil
}

func (a *fileArray) len() uint64 { return a.n }

func (a *fileArray) at(i uint64) model.ID {
	off := i * idWidth
	var buf [8]byte
	copy(buf[3:], a.data[off:off+idWidth])
	return model.ID(binary.BigEndian.Uint64(buf[:]))
}

func (a *fileArray) search(id model.ID) uint64 {
	return uint64(sort.Search(int(a.n), func(k int) bool { return a.at(uint64(k)) >= id }))
}

func (a *fileArray) contains(id model.ID) bool {
	i := a.search(id)
	return i < a.n && a.at(i) == id
}

func (a *fileArray) stepCost() int64   { return iterator.CostFileStep }
func (a *fileArray) searchCost() int64 { return iterator.CostBinarySearch }

// encodeIDs renders an array as the on-disk five-byte payload.
func encodeIDs(a array) []byte {
	n := a.len()
	out := make([]byte, n*idWidth)
	var buf [8]byte
	for i := uint64(0); i < n; i++ {
		binary.BigEndian.PutUint64(buf[:], uint64(a.at(i)))
		copy(out[i*idWidth:], buf[3:])
	}
	return out
}
