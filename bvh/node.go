package bvh

import (
	"encoding/binary"
	"math"
)

// Node record, 32 bytes. The same bytes are read at three widths:
//
//	f32[0..5]  bounds min xyz, max xyz
//	u32[6]     leaf: triangle offset / internal: right child byte offset
//	u32[7]     internal: split axis
//	u16[14]    leaf: triangle count
//	u16[15]    0xFFFF leaf sentinel
//
// The left child of an internal node is the next record in storage
// order; no pointer is stored for it.
const (
	NodeStride = 32

	nodeWords32 = NodeStride / 4
	nodeWords16 = NodeStride / 2

	// LeafSentinel in the last 16-bit word marks a leaf record.
	LeafSentinel = 0xFFFF
)

// IsLeaf reports whether the node at 16-bit-word base n16 is a leaf.
func IsLeaf(n16 int, u16 []uint16) bool {
	return u16[n16+15] == LeafSentinel
}

// TriangleCount is valid only when IsLeaf holds for the same node.
func TriangleCount(n16 int, u16 []uint16) uint32 {
	return uint32(u16[n16+14])
}

// TriangleOffset is valid only when IsLeaf holds for the same node.
func TriangleOffset(n32 int, u32 []uint32) uint32 {
	return u32[n32+6]
}

// RightChildByteOffset is valid only for internal nodes. The value is a
// byte offset into the node buffer, not a node index.
func RightChildByteOffset(n32 int, u32 []uint32) uint32 {
	return u32[n32+6]
}

// SplitAxis is valid only for internal nodes; 0, 1 or 2.
func SplitAxis(n32 int, u32 []uint32) uint32 {
	return u32[n32+7]
}

// BoundsBaseIndex returns the float-array index of the node's six
// contiguous bounding-box components. With a 32-byte stride the 32-bit
// word base and the float base coincide.
func BoundsBaseIndex(n32 int) int {
	return n32
}

// NodeBuffer views one raw node buffer at the three integer widths a
// record straddles. All reads are pure; no accessor mutates the buffer.
type NodeBuffer struct {
	f32 []float32
	u32 []uint32
	u16 []uint16
}

// NewNodeBuffer decodes raw into the three typed views. The raw length
// must be a whole number of 32-byte node records.
func NewNodeBuffer(raw []byte) *NodeBuffer {
	n := len(raw) / 4
	b := &NodeBuffer{
		f32: make([]float32, n),
		u32: make([]uint32, n),
		u16: make([]uint16, len(raw)/2),
	}
	for i := 0; i < n; i++ {
		w := binary.LittleEndian.Uint32(raw[i*4:])
		b.u32[i] = w
		b.f32[i] = math.Float32frombits(w)
	}
	for i := 0; i < len(raw)/2; i++ {
		b.u16[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return b
}

// Count returns the number of whole node records in the buffer.
func (b *NodeBuffer) Count() int {
	return len(b.u32) / nodeWords32
}

func (b *NodeBuffer) IsLeaf(node int) bool {
	return IsLeaf(node*nodeWords16, b.u16)
}

func (b *NodeBuffer) TriangleCount(node int) uint32 {
	return TriangleCount(node*nodeWords16, b.u16)
}

func (b *NodeBuffer) TriangleOffset(node int) uint32 {
	return TriangleOffset(node*nodeWords32, b.u32)
}

func (b *NodeBuffer) RightChildByteOffset(node int) uint32 {
	return RightChildByteOffset(node*nodeWords32, b.u32)
}

func (b *NodeBuffer) SplitAxis(node int) uint32 {
	return SplitAxis(node*nodeWords32, b.u32)
}

// Bounds returns the node's bounding box (min xyz, max xyz).
func (b *NodeBuffer) Bounds(node int) (bbMin, bbMax [3]float32) {
	base := BoundsBaseIndex(node * nodeWords32)
	copy(bbMin[:], b.f32[base:base+3])
	copy(bbMax[:], b.f32[base+3:base+6])
	return bbMin, bbMax
}
