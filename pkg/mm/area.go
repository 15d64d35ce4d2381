package mm

// MapPermission is the permission set requested for a mapped area. The
// bit layout matches PTEFlags so a permission converts directly into
// page-table flag bits.
type MapPermission uint8

const (
	// PermR allows reads.
	PermR MapPermission = 1 << 1
	// PermW allows writes.
	PermW MapPermission = 1 << 2
	// PermX allows execution.
	PermX MapPermission = 1 << 3
	// PermU allows user-mode access.
	PermU MapPermission = 1 << 4
)

// MapArea is one contiguous framed mapping inside an address space:
// a half-open page range, a permission set, and one exclusively owned
// physical frame per page.
type MapArea struct {
	rng    VPNRange
	perm   MapPermission
	frames map[VirtPageNum]*FrameTracker
}

// newMapArea creates an unmapped area covering [start, end), start
// rounded down and end rounded up to page boundaries.
func newMapArea(start, end VirtAddr, perm MapPermission) *MapArea {
	return &MapArea{
		rng:    NewVPNRange(start.Floor(), end.Ceil()),
		perm:   perm,
		frames: make(map[VirtPageNum]*FrameTracker),
	}
}

// Range returns the area's page range.
func (a *MapArea) Range() VPNRange { return a.rng }

// Perm returns the area's permission set.
func (a *MapArea) Perm() MapPermission { return a.perm }

// mapOne allocates a frame for vpn and installs its page-table entry.
func (a *MapArea) mapOne(pt *PageTable, alloc FrameAllocator, vpn VirtPageNum) {
	frame := alloc.Alloc()
	a.frames[vpn] = frame
	pt.Map(vpn, frame.PPN(), PTEFlags(a.perm))
}

// unmapOne clears vpn's page-table entry and releases its frame.
func (a *MapArea) unmapOne(pt *PageTable, vpn VirtPageNum) {
	pt.Unmap(vpn)
	a.frames[vpn].Release()
	delete(a.frames, vpn)
}

// mapAll maps every page of the area.
func (a *MapArea) mapAll(pt *PageTable, alloc FrameAllocator) {
	for vpn := a.rng.Start(); vpn < a.rng.End(); vpn++ {
		a.mapOne(pt, alloc, vpn)
	}
}

// unmapAll walks the area's range, clearing the page-table entries and
// releasing the backing frames.
func (a *MapArea) unmapAll(pt *PageTable) {
	for vpn := a.rng.Start(); vpn < a.rng.End(); vpn++ {
		a.unmapOne(pt, vpn)
	}
}

// appendTo grows the area's end to newEnd, mapping the added pages.
func (a *MapArea) appendTo(pt *PageTable, alloc FrameAllocator, newEnd VirtPageNum) {
	for vpn := a.rng.End(); vpn < newEnd; vpn++ {
		a.mapOne(pt, alloc, vpn)
	}
	a.rng = NewVPNRange(a.rng.Start(), newEnd)
}

// shrinkTo lowers the area's end to newEnd, unmapping the dropped pages.
func (a *MapArea) shrinkTo(pt *PageTable, newEnd VirtPageNum) {
	for vpn := newEnd; vpn < a.rng.End(); vpn++ {
		a.unmapOne(pt, vpn)
	}
	a.rng = NewVPNRange(a.rng.Start(), newEnd)
}
