// Package octreesplat implements the data model and geometry for a software
// renderer that rasterizes sparse voxel octrees by hierarchical splatting.
// The rendering core lives in the svorender subpackage; this package holds
// the octree storage format, scene objects, camera frustum and the affine
// cage machinery that feeds the splatter.
package octreesplat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// NodeSize is the byte length of one serialized octree node record.
const NodeSize = 8

// OctreeNode is a single node of a sparse voxel octree. Mask bit i is set
// iff child i exists. Address indexes the octree slice at the node's first
// child; children occupy 8 consecutive slots indexed by octant 0..7
// regardless of Mask, absent children are skipped via Mask only.
// A node with Mask==0 is a leaf and its Address is meaningless.
type OctreeNode struct {
	Mask    uint8
	R, G, B uint8
	Address uint32
}

// IsLeaf reports whether the node has no children.
func (n OctreeNode) IsLeaf() bool { return n.Mask == 0 }

// HasChild reports whether the child at the argument octant exists.
// Octant numbering: bit 0 = +X, bit 1 = +Y, bit 2 = +Z.
func (n OctreeNode) HasChild(octant int) bool { return n.Mask&(1<<octant) != 0 }

// ChildCount returns the number of existing children.
func (n OctreeNode) ChildCount() int { return bits.OnesCount8(n.Mask) }

// Octree is a flat array of nodes with the root at index 0. The slice is
// immutable during rendering and may be shared read-only across workers.
type Octree []OctreeNode

// ReadOctree decodes an octree from a binary stream of 8-byte little-endian
// records: u8 mask, u8 r, u8 g, u8 b, u32 address. There is no header; the
// node count is the stream length divided by 8.
func ReadOctree(r io.Reader) (Octree, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("empty octree stream")
	}
	if len(raw)%NodeSize != 0 {
		return nil, fmt.Errorf("octree stream length %d not a multiple of %d", len(raw), NodeSize)
	}
	t := make(Octree, len(raw)/NodeSize)
	for i := range t {
		rec := raw[i*NodeSize:]
		t[i] = OctreeNode{
			Mask:    rec[0],
			R:       rec[1],
			G:       rec[2],
			B:       rec[3],
			Address: binary.LittleEndian.Uint32(rec[4:8]),
		}
	}
	return t, nil
}

// WriteTo serializes the octree in the format read by [ReadOctree].
func (t Octree) WriteTo(w io.Writer) (int64, error) {
	var rec [NodeSize]byte
	var written int64
	for _, n := range t {
		rec[0] = n.Mask
		rec[1] = n.R
		rec[2] = n.G
		rec[3] = n.B
		binary.LittleEndian.PutUint32(rec[4:8], n.Address)
		k, err := w.Write(rec[:])
		written += int64(k)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Validate checks structural consistency: a non-empty node array and, for
// every non-leaf node, child addresses that keep all 8 child slots inside
// the array. Call at asset load boundaries; the renderer assumes a valid
// octree and does no bounds rechecking in its inner loop.
func (t Octree) Validate() error {
	if len(t) == 0 {
		return errors.New("octree has no root node")
	}
	for i, n := range t {
		if n.Mask == 0 {
			continue
		}
		if int64(n.Address)+8 > int64(len(t)) {
			return fmt.Errorf("node %d: child block [%d,%d) out of bounds (%d nodes)", i, n.Address, n.Address+8, len(t))
		}
	}
	return nil
}
