package bvh

import (
	"encoding/binary"
	"math"
	"testing"
)

// quadMesh returns two triangles forming a unit quad in the XY plane.
func quadMesh() ([]float32, []uint32) {
	positions := []float32{
		0, 0, 0, 1,
		1, 0, 0, 1,
		1, 1, 0, 1,
		0, 1, 0, 1,
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	return positions, indices
}

// spreadMesh returns n disjoint triangles spaced out along X.
func spreadMesh(n int) ([]float32, []uint32) {
	positions := make([]float32, 0, n*12)
	indices := make([]uint32, 0, n*3)
	for i := 0; i < n; i++ {
		x := float32(i * 4)
		positions = append(positions,
			x, 0, 0, 1,
			x+1, 0, 0, 1,
			x, 1, 0, 1,
		)
		base := uint32(i * 3)
		indices = append(indices, base, base+1, base+2)
	}
	return positions, indices
}

func TestBuildSingleLeaf(t *testing.T) {
	positions, indices := quadMesh()

	tree, err := Build(positions, 4, indices, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(tree.Roots))
	}
	if len(tree.Roots[0]) != NodeStride {
		t.Fatalf("expected one 32-byte node, got %d bytes", len(tree.Roots[0]))
	}

	nb := NewNodeBuffer(tree.Roots[0])
	if !nb.IsLeaf(0) {
		t.Fatal("root of a 2-triangle tree with leaf size 8 should be a leaf")
	}
	if got := nb.TriangleCount(0); got != 2 {
		t.Errorf("leaf triangle count = %d, want 2", got)
	}
	if got := nb.TriangleOffset(0); got != 0 {
		t.Errorf("leaf triangle offset = %d, want 0", got)
	}
	if len(tree.Indirection) != 2 {
		t.Fatalf("indirection length = %d, want 2", len(tree.Indirection))
	}

	bbMin, bbMax := nb.Bounds(0)
	if bbMin != [3]float32{0, 0, 0} || bbMax != [3]float32{1, 1, 0} {
		t.Errorf("root bounds = %v..%v, want (0,0,0)..(1,1,0)", bbMin, bbMax)
	}
}

func TestBuildPreorderInvariants(t *testing.T) {
	positions, indices := spreadMesh(33)

	tree, err := Build(positions, 4, indices, 2)
	if err != nil {
		t.Fatal(err)
	}

	nb := NewNodeBuffer(tree.Roots[0])
	count := nb.Count()
	if count < 3 {
		t.Fatalf("expected a split tree, got %d nodes", count)
	}

	leafTris := uint32(0)
	for i := 0; i < count; i++ {
		if nb.IsLeaf(i) {
			leafTris += nb.TriangleCount(i)
			continue
		}
		right := nb.RightChildByteOffset(i)
		if right%NodeStride != 0 {
			t.Fatalf("node %d: right child byte offset %d not stride aligned", i, right)
		}
		rightIdx := int(right / NodeStride)
		// Preorder: left child is the immediate successor, right child
		// comes after the whole left subtree.
		if rightIdx <= i+1 {
			t.Errorf("node %d: right child index %d not past left subtree", i, rightIdx)
		}
		if rightIdx >= count {
			t.Errorf("node %d: right child index %d out of range", i, rightIdx)
		}
		if axis := nb.SplitAxis(i); axis > 2 {
			t.Errorf("node %d: split axis %d", i, axis)
		}
	}

	if leafTris != 33 {
		t.Errorf("leaves reference %d triangles, want 33", leafTris)
	}

	// Indirection must be a permutation of the original triangle ids.
	seen := make(map[uint32]bool, len(tree.Indirection))
	for _, tri := range tree.Indirection {
		if tri >= 33 {
			t.Fatalf("indirection entry %d out of range", tri)
		}
		if seen[tri] {
			t.Fatalf("indirection entry %d duplicated", tri)
		}
		seen[tri] = true
	}
	if len(seen) != 33 {
		t.Errorf("indirection covers %d of 33 triangles", len(seen))
	}
}

func TestBuildChildBoundsNested(t *testing.T) {
	positions, indices := spreadMesh(16)

	tree, err := Build(positions, 4, indices, 1)
	if err != nil {
		t.Fatal(err)
	}

	raw := tree.Roots[0]
	nb := NewNodeBuffer(raw)
	rootMin, rootMax := nb.Bounds(0)
	for i := 1; i < nb.Count(); i++ {
		bbMin, bbMax := nb.Bounds(i)
		for c := 0; c < 3; c++ {
			if bbMin[c] < rootMin[c] || bbMax[c] > rootMax[c] {
				t.Fatalf("node %d bounds %v..%v escape root %v..%v", i, bbMin, bbMax, rootMin, rootMax)
			}
		}
	}

	// Spot-check the raw layout of the root record against the
	// published offsets.
	rawMinX := math.Float32frombits(binary.LittleEndian.Uint32(raw[0:4]))
	if rawMinX != rootMin[0] {
		t.Errorf("raw min.x = %f, accessor min.x = %f", rawMinX, rootMin[0])
	}
	if s := binary.LittleEndian.Uint16(raw[30:32]); s == LeafSentinel {
		t.Error("root of a 16-triangle tree should not be a leaf")
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	if _, err := Build([]float32{0, 0, 0, 1}, 4, []uint32{0, 0}, 4); err == nil {
		t.Error("expected error for truncated index triple")
	}
	if _, err := Build([]float32{0, 0, 0, 1}, 4, []uint32{0, 1, 2}, 4); err == nil {
		t.Error("expected error for out-of-range vertex index")
	}
	if _, err := Build([]float32{0, 0}, 2, []uint32{}, 4); err == nil {
		t.Error("expected error for stride below 3")
	}
}
