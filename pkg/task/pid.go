package task

import (
	"fmt"
	"sync"

	"kernos/pkg/mm"
)

// Kernel stack layout. Each pid gets a fixed kernel stack slot below
// the top of kernel address space, separated by guard pages.
const (
	// KernelStackSize is the size of one kernel stack in bytes.
	KernelStackSize = 2 * mm.PageSize
	// kernelAddrTop is the top of the kernel stack region.
	kernelAddrTop uintptr = 1 << 38
)

// kernelStackTop returns the top address of the kernel stack slot for
// a pid.
func kernelStackTop(pid int) uintptr {
	return kernelAddrTop - uintptr(pid)*(KernelStackSize+mm.PageSize)
}

// PidAllocator allocates process ids, recycling reaped ids before
// extending the range. Ids are unique among live tasks.
type PidAllocator struct {
	mu       sync.Mutex
	next     int
	recycled []int
}

// NewPidAllocator creates an allocator starting at pid 0.
func NewPidAllocator() *PidAllocator {
	return &PidAllocator{}
}

// Alloc returns a free pid, preferring the most recently recycled one.
func (a *PidAllocator) Alloc() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.recycled); n > 0 {
		pid := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return pid
	}
	pid := a.next
	a.next++
	return pid
}

// Dealloc returns a pid to the allocator. Releasing a pid that was
// never handed out, or releasing one twice, is an invariant violation.
func (a *PidAllocator) Dealloc(pid int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pid < 0 || pid >= a.next {
		panic(fmt.Sprintf("task: dealloc of unallocated pid %d", pid))
	}
	for _, r := range a.recycled {
		if r == pid {
			panic(fmt.Sprintf("task: pid %d deallocated twice", pid))
		}
	}
	a.recycled = append(a.recycled, pid)
}
