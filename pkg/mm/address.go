package mm

// Page geometry. Pages are 4 KiB, matching the usual Sv39-style layout.
const (
	// PageSizeBits is the number of offset bits within a page.
	PageSizeBits = 12
	// PageSize is the size of a page in bytes.
	PageSize = 1 << PageSizeBits
)

// VirtAddr is a virtual address.
type VirtAddr uintptr

// PhysAddr is a physical address.
type PhysAddr uintptr

// VirtPageNum is a virtual page number.
type VirtPageNum uintptr

// PhysPageNum is a physical page number.
type PhysPageNum uintptr

// Floor returns the page containing the address.
func (va VirtAddr) Floor() VirtPageNum {
	return VirtPageNum(va >> PageSizeBits)
}

// Ceil returns the first page at or above the address.
func (va VirtAddr) Ceil() VirtPageNum {
	return VirtPageNum((va + PageSize - 1) >> PageSizeBits)
}

// PageOffset returns the offset of the address within its page.
func (va VirtAddr) PageOffset() uintptr {
	return uintptr(va) & (PageSize - 1)
}

// Aligned reports whether the address sits on a page boundary.
func (va VirtAddr) Aligned() bool {
	return va.PageOffset() == 0
}

// Addr returns the base address of the page.
func (vpn VirtPageNum) Addr() VirtAddr {
	return VirtAddr(vpn << PageSizeBits)
}

// VPNRange is a half-open range [start, end) of virtual page numbers.
type VPNRange struct {
	start VirtPageNum
	end   VirtPageNum
}

// NewVPNRange creates a half-open page range.
func NewVPNRange(start, end VirtPageNum) VPNRange {
	if end < start {
		end = start
	}
	return VPNRange{start: start, end: end}
}

// Start returns the first page of the range.
func (r VPNRange) Start() VirtPageNum { return r.start }

// End returns the page one past the last page of the range.
func (r VPNRange) End() VirtPageNum { return r.end }

// Len returns the number of pages in the range.
func (r VPNRange) Len() int { return int(r.end - r.start) }

// IsEmpty reports whether the range contains no pages.
func (r VPNRange) IsEmpty() bool { return r.end <= r.start }

// Contains reports whether the range contains the page.
func (r VPNRange) Contains(vpn VirtPageNum) bool {
	return vpn >= r.start && vpn < r.end
}

// Overlaps reports whether two ranges share at least one page. Empty
// ranges never overlap anything.
func (r VPNRange) Overlaps(other VPNRange) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}
	return r.start < other.end && other.start < r.end
}

// Pages returns every page number in the range, in ascending order.
func (r VPNRange) Pages() []VirtPageNum {
	if r.IsEmpty() {
		return nil
	}
	pages := make([]VirtPageNum, 0, r.Len())
	for vpn := r.start; vpn < r.end; vpn++ {
		pages = append(pages, vpn)
	}
	return pages
}
