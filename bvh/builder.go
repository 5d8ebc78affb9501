package bvh

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultMaxLeafTris is the largest triangle count a leaf holds before
// the builder keeps splitting.
const DefaultMaxLeafTris = 8

// Tree is a built hierarchy: one raw node buffer per root plus the
// permutation from traversal order back to original triangle order.
// The builder always emits exactly one root; the slice exists so the
// encoder can reject foreign multi-root structures instead of silently
// encoding half a tree.
type Tree struct {
	Roots       [][]byte
	Indirection []uint32

	Stats BuildStats
}

type BuildStats struct {
	Nodes    int
	Leaves   int
	MaxDepth int
}

type triItem struct {
	index    int
	min      mgl32.Vec3
	max      mgl32.Vec3
	centroid mgl32.Vec3
}

type builder struct {
	maxLeafTris int
	nodes       []node
	order       []uint32
	stats       BuildStats
}

type node struct {
	min, max mgl32.Vec3
	leaf     bool
	count    uint32 // leaf
	offset   uint32 // leaf
	axis     uint32 // internal
	right    int    // internal, node index
}

// Build constructs a single-root BVH over indexed triangle geometry.
// positions holds posStride floats per vertex with xyz in the first
// three components; indices holds three entries per triangle. The node
// buffer uses the published 32-byte layout with preorder storage, so
// the left child of every internal node is the next record.
func Build(positions []float32, posStride int, indices []uint32, maxLeafTris int) (*Tree, error) {
	if posStride < 3 {
		return nil, fmt.Errorf("bvh: position stride %d, need at least 3", posStride)
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("bvh: index count %d is not a multiple of 3", len(indices))
	}
	if maxLeafTris <= 0 {
		maxLeafTris = DefaultMaxLeafTris
	}
	if maxLeafTris > math.MaxUint16-1 {
		maxLeafTris = math.MaxUint16 - 1
	}

	triCount := len(indices) / 3
	items := make([]triItem, triCount)
	for t := 0; t < triCount; t++ {
		it := triItem{
			index: t,
			min:   mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))},
			max:   mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))},
		}
		for c := 0; c < 3; c++ {
			vi := int(indices[t*3+c])
			if (vi+1)*posStride > len(positions) {
				return nil, fmt.Errorf("bvh: index %d out of range for %d vertices", vi, len(positions)/posStride)
			}
			v := mgl32.Vec3{positions[vi*posStride], positions[vi*posStride+1], positions[vi*posStride+2]}
			it.min = minVec3(it.min, v)
			it.max = maxVec3(it.max, v)
		}
		it.centroid = it.min.Add(it.max).Mul(0.5)
		items[t] = it
	}

	b := &builder{
		maxLeafTris: maxLeafTris,
		nodes:       make([]node, 0, 2*triCount),
		order:       make([]uint32, 0, triCount),
	}
	b.emit(items, 0)

	return &Tree{
		Roots:       [][]byte{b.serialize()},
		Indirection: b.order,
		Stats:       b.stats,
	}, nil
}

// emit appends the subtree for items in preorder and returns its node
// index.
func (b *builder) emit(items []triItem, depth int) int {
	if depth > b.stats.MaxDepth {
		b.stats.MaxDepth = depth
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{
		min: mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))},
		max: mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))},
	})
	b.stats.Nodes++

	for _, it := range items {
		b.nodes[idx].min = minVec3(b.nodes[idx].min, it.min)
		b.nodes[idx].max = maxVec3(b.nodes[idx].max, it.max)
	}

	if len(items) <= b.maxLeafTris {
		b.nodes[idx].leaf = true
		b.nodes[idx].offset = uint32(len(b.order))
		b.nodes[idx].count = uint32(len(items))
		for _, it := range items {
			b.order = append(b.order, uint32(it.index))
		}
		b.stats.Leaves++
		return idx
	}

	// Median split on the longest axis of the centroid extent.
	extent := b.nodes[idx].max.Sub(b.nodes[idx].min)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].centroid[axis] < items[j].centroid[axis]
	})

	mid := len(items) / 2
	b.nodes[idx].axis = uint32(axis)
	b.emit(items[:mid], depth+1) // left child lands at idx+1
	b.nodes[idx].right = b.emit(items[mid:], depth+1)
	return idx
}

func (b *builder) serialize() []byte {
	buf := make([]byte, len(b.nodes)*NodeStride)
	for i, n := range b.nodes {
		base := i * NodeStride
		binary.LittleEndian.PutUint32(buf[base+0:], math.Float32bits(n.min.X()))
		binary.LittleEndian.PutUint32(buf[base+4:], math.Float32bits(n.min.Y()))
		binary.LittleEndian.PutUint32(buf[base+8:], math.Float32bits(n.min.Z()))
		binary.LittleEndian.PutUint32(buf[base+12:], math.Float32bits(n.max.X()))
		binary.LittleEndian.PutUint32(buf[base+16:], math.Float32bits(n.max.Y()))
		binary.LittleEndian.PutUint32(buf[base+20:], math.Float32bits(n.max.Z()))
		if n.leaf {
			binary.LittleEndian.PutUint32(buf[base+24:], n.offset)
			binary.LittleEndian.PutUint16(buf[base+28:], uint16(n.count))
			binary.LittleEndian.PutUint16(buf[base+30:], LeafSentinel)
		} else {
			binary.LittleEndian.PutUint32(buf[base+24:], uint32(n.right*NodeStride))
			binary.LittleEndian.PutUint32(buf[base+28:], n.axis)
		}
	}
	return buf
}

func minVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{minf(a.X(), b.X()), minf(a.Y(), b.Y()), minf(a.Z(), b.Z())}
}

func maxVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{maxf(a.X(), b.X()), maxf(a.Y(), b.Y()), maxf(a.Z(), b.Z())}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
