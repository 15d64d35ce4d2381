package mm

import "errors"

// Address-space mutation errors.
var (
	ErrAreaOverlap  = errors.New("area overlaps an existing mapping")
	ErrAreaNotFound = errors.New("no area matches the requested range")
	ErrAreaShrunk   = errors.New("cannot shrink area below its base")
)

// MemorySet is one process's address space: a page table plus the
// ordered list of mapped areas backing it. Every page mapped in the
// page table is backed by exactly one area, and removing an area always
// clears its page-table entries before dropping the record, so the two
// structures are never observed out of sync.
//
// A MemorySet is exclusively owned by one task; all mutation is
// self-directed. It is not safe for concurrent use.
type MemorySet struct {
	pt    *PageTable
	areas []*MapArea
	alloc FrameAllocator
}

// NewMemorySet creates an empty address space drawing frames from alloc.
func NewMemorySet(alloc FrameAllocator) *MemorySet {
	return &MemorySet{pt: NewPageTable(), alloc: alloc}
}

// Allocator returns the frame allocator backing the address space.
func (ms *MemorySet) Allocator() FrameAllocator { return ms.alloc }

// Areas returns the mapped areas in insertion order.
func (ms *MemorySet) Areas() []*MapArea { return ms.areas }

// MappedPages returns the number of pages in the page table.
func (ms *MemorySet) MappedPages() int { return ms.pt.Len() }

// Translate returns the page-table entry for vpn if the page is mapped.
func (ms *MemorySet) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	return ms.pt.Translate(vpn)
}

// InsertFramedArea maps [start, end) with perm, start rounded down and
// end rounded up to page boundaries, allocating one frame per page.
// The overlap check walks every existing area; on overlap nothing is
// mutated. A zero-length range inserts an empty area record (used for
// the initial program-break area) and maps nothing.
func (ms *MemorySet) InsertFramedArea(start, end VirtAddr, perm MapPermission) error {
	area := newMapArea(start, end, perm)
	for _, existing := range ms.areas {
		if existing.rng.Overlaps(area.rng) {
			return ErrAreaOverlap
		}
	}
	area.mapAll(ms.pt, ms.alloc)
	ms.areas = append(ms.areas, area)
	return nil
}

// RemoveAreaMatching removes the area whose page bounds exactly equal
// the range implied by [start, end), unmapping its pages and releasing
// their frames. Partial unmapping of an area is not supported; a range
// that only covers part of an area reports ErrAreaNotFound.
func (ms *MemorySet) RemoveAreaMatching(start, end VirtAddr) error {
	want := NewVPNRange(start.Floor(), end.Ceil())
	for i, area := range ms.areas {
		if area.rng.Start() == want.Start() && area.rng.End() == want.End() {
			area.unmapAll(ms.pt)
			ms.areas = append(ms.areas[:i], ms.areas[i+1:]...)
			return nil
		}
	}
	return ErrAreaNotFound
}

// AppendTo grows the area starting at start so that it covers newEnd,
// refusing growth that would collide with another area.
func (ms *MemorySet) AppendTo(start, newEnd VirtAddr) error {
	idx := ms.findAreaByStart(start)
	if idx < 0 {
		return ErrAreaNotFound
	}
	area := ms.areas[idx]
	grown := NewVPNRange(area.rng.Start(), newEnd.Ceil())
	for i, other := range ms.areas {
		if i != idx && other.rng.Overlaps(grown) {
			return ErrAreaOverlap
		}
	}
	area.appendTo(ms.pt, ms.alloc, newEnd.Ceil())
	return nil
}

// ShrinkTo shrinks the area starting at start so that it ends at
// newEnd. Shrinking below the area's own base is rejected.
func (ms *MemorySet) ShrinkTo(start, newEnd VirtAddr) error {
	idx := ms.findAreaByStart(start)
	if idx < 0 {
		return ErrAreaNotFound
	}
	area := ms.areas[idx]
	if newEnd.Ceil() < area.rng.Start() {
		return ErrAreaShrunk
	}
	area.shrinkTo(ms.pt, newEnd.Ceil())
	return nil
}

func (ms *MemorySet) findAreaByStart(start VirtAddr) int {
	for i, area := range ms.areas {
		if area.rng.Start() == start.Floor() {
			return i
		}
	}
	return -1
}

// CloneFrom rebuilds this address space as a deep copy of other: the
// same areas and permissions, backed by freshly allocated frames with
// the page contents copied byte for byte. Used by fork; the two spaces
// never alias a frame.
func (ms *MemorySet) CloneFrom(other *MemorySet) {
	ms.Recycle()
	for _, src := range other.areas {
		area := &MapArea{
			rng:    src.rng,
			perm:   src.perm,
			frames: make(map[VirtPageNum]*FrameTracker),
		}
		area.mapAll(ms.pt, ms.alloc)
		for vpn, frame := range area.frames {
			copy(frame.Bytes(), src.frames[vpn].Bytes())
		}
		ms.areas = append(ms.areas, area)
	}
}

// Recycle drops every area, clearing all page-table entries and
// returning all frames to the allocator. Used by exec and exit.
func (ms *MemorySet) Recycle() {
	for _, area := range ms.areas {
		area.unmapAll(ms.pt)
	}
	ms.areas = nil
}
