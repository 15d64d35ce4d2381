/*
Package mm implements per-process virtual memory for the kernos kernel.

A MemorySet owns a process's page table and the ordered list of mapped
virtual-memory areas (VMAs) backing it. Every mapping is framed: each
virtual page in an area is backed by its own physical frame, allocated
from a FrameAllocator and freed when the area is unmapped. There is no
sharing between areas or between address spaces; fork deep-copies every
frame.

The package keeps two invariants at all times:

  - every page mapped in the page table is backed by exactly one VMA,
    and removing a VMA clears its page-table entries before the record
    is dropped
  - a physical frame is owned by exactly one VMA; releasing the VMA
    returns the frame to the allocator

Areas are inserted by mmap, the loader-built segments, the user stack,
the trap-context page and heap growth, and removed only by an
exact-bounds munmap. Overlap detection walks every existing area; the
linear scan is fine at this scale.

User-memory access goes through TranslatedByteBuffer and the CopyIn/
CopyOut helpers, which resolve a logically contiguous user range into
the physically contiguous chunks it actually occupies. Syscalls that
fill caller-supplied buffers must use these rather than assume the
destination sits inside one page.
*/
package mm
