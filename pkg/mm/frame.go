package mm

import (
	"errors"
	"fmt"
	"sync"
)

// Frame allocation errors.
var (
	ErrFrameDoubleFree = errors.New("frame already free")
)

// FrameAllocator is the physical frame allocator interface consumed by
// address spaces.
type FrameAllocator interface {
	// Alloc allocates one physical frame. Frame exhaustion is an
	// unmodeled fatal condition: Alloc panics instead of failing.
	Alloc() *FrameTracker
	// FrameBytes returns the backing storage of an allocated frame.
	FrameBytes(ppn PhysPageNum) []byte
	// Dealloc returns a frame to the allocator.
	Dealloc(ppn PhysPageNum)
}

// FrameTracker is the owning handle for one allocated physical frame.
// Releasing the tracker returns the frame to its allocator; frames are
// never shared between trackers.
type FrameTracker struct {
	ppn   PhysPageNum
	alloc FrameAllocator
}

// PPN returns the physical page number of the tracked frame.
func (f *FrameTracker) PPN() PhysPageNum { return f.ppn }

// Bytes returns the frame's backing storage.
func (f *FrameTracker) Bytes() []byte { return f.alloc.FrameBytes(f.ppn) }

// Release returns the frame to the allocator. The tracker must not be
// used afterwards.
func (f *FrameTracker) Release() {
	f.alloc.Dealloc(f.ppn)
}

// StackFrameAllocator hands out frames from a bump pointer and recycles
// freed frames through a free list, reusing the most recently freed
// frame first.
type StackFrameAllocator struct {
	mu       sync.Mutex
	next     PhysPageNum
	end      PhysPageNum
	recycled []PhysPageNum
	mem      map[PhysPageNum][]byte
}

// NewStackFrameAllocator creates an allocator managing the physical
// page range [start, end).
func NewStackFrameAllocator(start, end PhysPageNum) *StackFrameAllocator {
	return &StackFrameAllocator{
		next: start,
		end:  end,
		mem:  make(map[PhysPageNum][]byte),
	}
}

// Alloc allocates one zeroed frame. It panics when no frame is left;
// running out of physical memory is a fatal condition in this kernel.
func (a *StackFrameAllocator) Alloc() *FrameTracker {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ppn PhysPageNum
	if n := len(a.recycled); n > 0 {
		ppn = a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
	} else {
		if a.next >= a.end {
			panic("mm: out of physical frames")
		}
		ppn = a.next
		a.next++
	}

	// Fresh storage rather than zeroing in place keeps stale aliases
	// from observing the new owner's data.
	a.mem[ppn] = make([]byte, PageSize)
	return &FrameTracker{ppn: ppn, alloc: a}
}

// FrameBytes returns the backing storage of an allocated frame.
func (a *StackFrameAllocator) FrameBytes(ppn PhysPageNum) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.mem[ppn]
	if !ok {
		panic(fmt.Sprintf("mm: frame %#x not allocated", uintptr(ppn)))
	}
	return data
}

// Dealloc returns a frame to the free list. Freeing a frame that is not
// allocated is an invariant violation.
func (a *StackFrameAllocator) Dealloc(ppn PhysPageNum) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.mem[ppn]; !ok {
		panic(ErrFrameDoubleFree)
	}
	delete(a.mem, ppn)
	a.recycled = append(a.recycled, ppn)
}

// Allocated returns the number of frames currently handed out.
func (a *StackFrameAllocator) Allocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.mem)
}
