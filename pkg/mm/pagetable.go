package mm

import "fmt"

// PTEFlags is the permission/validity bit set of a page-table entry.
type PTEFlags uint8

const (
	// FlagV marks the entry valid.
	FlagV PTEFlags = 1 << 0
	// FlagR allows reads.
	FlagR PTEFlags = 1 << 1
	// FlagW allows writes.
	FlagW PTEFlags = 1 << 2
	// FlagX allows execution.
	FlagX PTEFlags = 1 << 3
	// FlagU allows user-mode access.
	FlagU PTEFlags = 1 << 4
)

// PageTableEntry maps one virtual page to a physical frame with a set
// of permission flags.
type PageTableEntry struct {
	ppn   PhysPageNum
	flags PTEFlags
}

// PPN returns the physical page number of the entry.
func (e PageTableEntry) PPN() PhysPageNum { return e.ppn }

// Flags returns the entry's flag bits.
func (e PageTableEntry) Flags() PTEFlags { return e.flags }

// Valid reports whether the entry is valid.
func (e PageTableEntry) Valid() bool { return e.flags&FlagV != 0 }

// Readable reports whether the page may be read.
func (e PageTableEntry) Readable() bool { return e.flags&FlagR != 0 }

// Writable reports whether the page may be written.
func (e PageTableEntry) Writable() bool { return e.flags&FlagW != 0 }

// Executable reports whether the page may be executed.
func (e PageTableEntry) Executable() bool { return e.flags&FlagX != 0 }

// UserAccessible reports whether user mode may touch the page.
func (e PageTableEntry) UserAccessible() bool { return e.flags&FlagU != 0 }

// PageTable is one address space's page table. Map and Unmap model the
// atomic single-instruction page-table updates of the hardware layer;
// consistency with the VMA list is the address space's job.
type PageTable struct {
	entries map[VirtPageNum]PageTableEntry
}

// NewPageTable creates an empty page table.
func NewPageTable() *PageTable {
	return &PageTable{entries: make(map[VirtPageNum]PageTableEntry)}
}

// Map installs an entry for vpn. Mapping a page twice is an invariant
// violation.
func (pt *PageTable) Map(vpn VirtPageNum, ppn PhysPageNum, flags PTEFlags) {
	if _, ok := pt.entries[vpn]; ok {
		panic(fmt.Sprintf("mm: vpn %#x mapped twice", uintptr(vpn)))
	}
	pt.entries[vpn] = PageTableEntry{ppn: ppn, flags: flags | FlagV}
}

// Unmap clears the entry for vpn. Unmapping an unmapped page is an
// invariant violation.
func (pt *PageTable) Unmap(vpn VirtPageNum) {
	if _, ok := pt.entries[vpn]; !ok {
		panic(fmt.Sprintf("mm: vpn %#x not mapped", uintptr(vpn)))
	}
	delete(pt.entries, vpn)
}

// Translate returns the entry for vpn if the page is mapped.
func (pt *PageTable) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	e, ok := pt.entries[vpn]
	return e, ok
}

// Len returns the number of mapped pages.
func (pt *PageTable) Len() int { return len(pt.entries) }
