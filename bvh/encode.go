package bvh

import (
	"fmt"
	"math"
)

// UnsupportedStructureError reports a hierarchy the flat encoding
// cannot represent. Multi-root trees are a precondition violation, not
// something to silently work around.
type UnsupportedStructureError struct {
	Roots int
}

func (e *UnsupportedStructureError) Error() string {
	return fmt.Sprintf("bvh: unsupported structure: %d roots, exactly 1 required", e.Roots)
}

// Encoded holds the two parallel flat arrays a traversal kernel
// consumes, sized to square texture dimensions. Index i refers to the
// same node in both arrays. Slots past NodeCount are padding and stay
// zero; kernels must bound traversal by the node count, never by the
// array length.
type Encoded struct {
	// Bounds holds two 4-float groups per node at 8*i: min xyz plus a
	// zero pad, then max xyz plus a zero pad. Length 4*BoundsDim^2.
	Bounds []float32

	// Contents holds two 32-bit words per node at 2*i. Leaves store
	// (LeafSentinel<<16 | count, triangle offset); internal nodes store
	// (split axis, right child node index). Length 2*ContentsDim^2.
	Contents []uint32

	// BoundsDim is 2*ceil(sqrt(nodeCount/2)): each node needs two
	// 4-float rows, so doubling the height keeps the texture square
	// while fitting one row pair per node.
	BoundsDim int

	// ContentsDim is ceil(sqrt(nodeCount)).
	ContentsDim int

	NodeCount int
}

// Encode walks every node of a single-root tree in storage order and
// emits the bounds and contents arrays. Trees with any other root
// count fail with UnsupportedStructureError.
func Encode(t *Tree) (*Encoded, error) {
	if len(t.Roots) != 1 {
		return nil, &UnsupportedStructureError{Roots: len(t.Roots)}
	}

	nb := NewNodeBuffer(t.Roots[0])
	count := nb.Count()

	contentsDim := squareSide(count)
	boundsDim := 2 * squareSide((count+1)/2)

	enc := &Encoded{
		Bounds:      make([]float32, 4*boundsDim*boundsDim),
		Contents:    make([]uint32, 2*contentsDim*contentsDim),
		BoundsDim:   boundsDim,
		ContentsDim: contentsDim,
		NodeCount:   count,
	}

	for i := 0; i < count; i++ {
		bbMin, bbMax := nb.Bounds(i)
		base := 8 * i
		enc.Bounds[base+0] = bbMin[0]
		enc.Bounds[base+1] = bbMin[1]
		enc.Bounds[base+2] = bbMin[2]
		enc.Bounds[base+4] = bbMax[0]
		enc.Bounds[base+5] = bbMax[1]
		enc.Bounds[base+6] = bbMax[2]

		if nb.IsLeaf(i) {
			enc.Contents[2*i] = uint32(LeafSentinel)<<16 | nb.TriangleCount(i)
			enc.Contents[2*i+1] = nb.TriangleOffset(i)
		} else {
			enc.Contents[2*i] = nb.SplitAxis(i)
			enc.Contents[2*i+1] = nb.RightChildByteOffset(i) / NodeStride
		}
	}

	return enc, nil
}

// squareSide returns the smallest s >= 1 with s*s >= n. The float
// square root is adjusted so rounding can never undersize the texture.
func squareSide(n int) int {
	if n <= 1 {
		return 1
	}
	s := int(math.Ceil(math.Sqrt(float64(n))))
	for s > 1 && (s-1)*(s-1) >= n {
		s--
	}
	for s*s < n {
		s++
	}
	return s
}
