package task

import (
	"sync"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
	"kernos/pkg/trap"
)

// TaskStatus represents the scheduling state of a task.
type TaskStatus string

const (
	// StatusReady indicates the task is runnable and waiting for the CPU.
	StatusReady TaskStatus = "ready"
	// StatusRunning indicates the task currently holds the CPU.
	StatusRunning TaskStatus = "running"
	// StatusZombie indicates the task has exited and awaits reaping.
	StatusZombie TaskStatus = "zombie"
)

// Code returns the status's numeric encoding used by task-info
// introspection.
func (s TaskStatus) Code() uint64 {
	switch s {
	case StatusReady:
		return 1
	case StatusRunning:
		return 2
	case StatusZombie:
		return 3
	}
	return 0
}

// Address-space layout and scheduling defaults.
const (
	// UserStackSize is the size of the user stack in bytes.
	UserStackSize = 2 * mm.PageSize
	// MaxUserVA is the top of user address space.
	MaxUserVA mm.VirtAddr = 1 << 30
	// TrapContextBase is the page the trap context is stored in.
	TrapContextBase = MaxUserVA - mm.PageSize
	// DefaultPriority is the priority a task starts with.
	DefaultPriority = 16
	// MinPriority is the lowest accepted priority; values at or below
	// 1 are degenerate under stride scheduling and are rejected.
	MinPriority = 2
	// MaxSyscallNum bounds the per-task syscall counter table.
	MaxSyscallNum = 500
	// NoParent marks a task without a parent.
	NoParent = -1
	// AnyChild is the waitpid wildcard matching any child.
	AnyChild = -1
)

// TaskControlBlock is the kernel's per-process state record: identity,
// exclusively owned address space, saved trap context, scheduling
// metadata, family links and exit status.
//
// The parent link is a pid, not a pointer, so the family tree never
// forms an ownership cycle; children are owned through the parent's
// child list and leave it only when reaped.
type TaskControlBlock struct {
	pid       int
	kstackTop uintptr

	// mu protects all mutable state below.
	mu sync.Mutex

	space  *mm.MemorySet
	trapCx trap.Context
	taskCx TaskContext

	status   TaskStatus
	exitCode int

	parentPID int
	children  []*TaskControlBlock

	priority int
	pass     uint64

	syscallTimes [MaxSyscallNum]uint32

	scheduled        bool
	firstScheduledMS uint64

	heapBottom mm.VirtAddr
	brk        mm.VirtAddr
}

// NewTask builds a task from an executable image and an allocated pid:
// fresh address space, trap context at the image entry point, first-run
// task context targeting trap return, status Ready, default priority,
// zeroed counters.
func NewTask(alloc mm.FrameAllocator, img *loader.Image, pid int) *TaskControlBlock {
	space, userSP, entry, heapBottom := buildAddressSpace(alloc, img)
	return &TaskControlBlock{
		pid:        pid,
		kstackTop:  kernelStackTop(pid),
		space:      space,
		trapCx:     trap.AppInitContext(entry, userSP),
		taskCx:     GotoTrapReturn(kernelStackTop(pid)),
		status:     StatusReady,
		parentPID:  NoParent,
		priority:   DefaultPriority,
		heapBottom: heapBottom,
		brk:        heapBottom,
	}
}

// buildAddressSpace lays out a fresh address space for an image:
// the parsed segments, a guard-separated user stack, the trap-context
// page, and an initially empty program-break area.
func buildAddressSpace(alloc mm.FrameAllocator, img *loader.Image) (space *mm.MemorySet, userSP, entry uint64, heapBottom mm.VirtAddr) {
	space = mm.NewMemorySet(alloc)
	for _, seg := range img.Segments {
		end := seg.Start + mm.VirtAddr(len(seg.Data))
		if err := space.InsertFramedArea(seg.Start, end, seg.Perm|mm.PermU); err != nil {
			// Images are validated by the loader; overlapping segments
			// indicate a broken invariant there.
			panic("task: image segments overlap: " + err.Error())
		}
		if err := mm.CopyOut(space, seg.Start, seg.Data); err != nil {
			panic("task: segment copy failed: " + err.Error())
		}
	}

	stackBottom := img.MaxEndVA().Ceil().Addr() + mm.PageSize // guard page below
	stackTop := stackBottom + UserStackSize
	if err := space.InsertFramedArea(stackBottom, stackTop, mm.PermR|mm.PermW|mm.PermU); err != nil {
		panic("task: user stack overlaps image: " + err.Error())
	}
	if err := space.InsertFramedArea(TrapContextBase, MaxUserVA, mm.PermR|mm.PermW); err != nil {
		panic("task: trap context page overlaps: " + err.Error())
	}

	heapBottom = stackTop + mm.PageSize // guard page above the stack
	if err := space.InsertFramedArea(heapBottom, heapBottom, mm.PermR|mm.PermW|mm.PermU); err != nil {
		panic("task: heap area overlaps: " + err.Error())
	}
	return space, uint64(stackTop), img.Entry, heapBottom
}

// Fork deep-copies the task's entire address space into a child with
// an identical virtual layout backed by disjoint frames, links the
// child into this task's child list, and returns it Ready. The child's
// saved trap context starts as a copy of the parent's; the caller
// forces its return-value register to zero per the fork convention.
func (t *TaskControlBlock) Fork(alloc mm.FrameAllocator, pid int) *TaskControlBlock {
	t.mu.Lock()
	defer t.mu.Unlock()

	space := mm.NewMemorySet(alloc)
	space.CloneFrom(t.space)

	child := &TaskControlBlock{
		pid:        pid,
		kstackTop:  kernelStackTop(pid),
		space:      space,
		trapCx:     t.trapCx,
		taskCx:     GotoTrapReturn(kernelStackTop(pid)),
		status:     StatusReady,
		parentPID:  t.pid,
		priority:   DefaultPriority,
		heapBottom: t.heapBottom,
		brk:        t.brk,
	}
	t.children = append(t.children, child)
	return child
}

// Exec discards the task's address space and trap context and rebuilds
// them from img. Identity, family links, priority and syscall counters
// are preserved; no new task is created.
func (t *TaskControlBlock) Exec(img *loader.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()

	alloc := t.space.Allocator()
	t.space.Recycle()
	space, userSP, entry, heapBottom := buildAddressSpace(alloc, img)
	t.space = space
	t.trapCx = trap.AppInitContext(entry, userSP)
	t.taskCx = GotoTrapReturn(t.kstackTop)
	t.heapBottom = heapBottom
	t.brk = heapBottom
}

// Spawn creates a child task directly from an image: fork and exec
// collapsed into one step. The parent's address space is never copied
// or read.
func (t *TaskControlBlock) Spawn(alloc mm.FrameAllocator, img *loader.Image, pid int) *TaskControlBlock {
	child := NewTask(alloc, img, pid)

	t.mu.Lock()
	defer t.mu.Unlock()
	child.parentPID = t.pid
	t.children = append(t.children, child)
	return child
}

// ChangeProgramBrk grows or shrinks the heap area by delta bytes and
// returns the previous break. It fails without mutating if the new
// break would fall below the heap base or the growth would collide
// with another mapping.
func (t *TaskControlBlock) ChangeProgramBrk(delta int64) (uintptr, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.brk
	newBrk := int64(old) + delta
	if newBrk < int64(t.heapBottom) {
		return 0, false
	}
	var err error
	switch {
	case delta > 0:
		err = t.space.AppendTo(t.heapBottom, mm.VirtAddr(newBrk))
	case delta < 0:
		err = t.space.ShrinkTo(t.heapBottom, mm.VirtAddr(newBrk))
	}
	if err != nil {
		return 0, false
	}
	t.brk = mm.VirtAddr(newBrk)
	return uintptr(old), true
}

// Pid returns the task's process id.
func (t *TaskControlBlock) Pid() int { return t.pid }

// KernelStackTop returns the top of the task's kernel stack.
func (t *TaskControlBlock) KernelStackTop() uintptr { return t.kstackTop }

// Space returns the task's address space.
func (t *TaskControlBlock) Space() *mm.MemorySet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.space
}

// TrapContext returns the task's saved trap context.
func (t *TaskControlBlock) TrapContext() *trap.Context { return &t.trapCx }

// TaskCx returns the task's saved switch context.
func (t *TaskControlBlock) TaskCx() *TaskContext { return &t.taskCx }

// Status returns the task's scheduling status.
func (t *TaskControlBlock) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetStatus sets the task's scheduling status.
func (t *TaskControlBlock) SetStatus(s TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
}

// IsZombie reports whether the task has exited.
func (t *TaskControlBlock) IsZombie() bool {
	return t.Status() == StatusZombie
}

// ExitCode returns the exit code; valid only once the task is a zombie.
func (t *TaskControlBlock) ExitCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode
}

// SetExitCode records the task's exit code.
func (t *TaskControlBlock) SetExitCode(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exitCode = code
}

// ParentPID returns the pid of the task's parent, or NoParent.
func (t *TaskControlBlock) ParentPID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.parentPID
}

// SetParentPID rewrites the task's parent link; used when orphans are
// reparented.
func (t *TaskControlBlock) SetParentPID(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parentPID = pid
}

// Children returns a snapshot of the task's child list.
func (t *TaskControlBlock) Children() []*TaskControlBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*TaskControlBlock, len(t.children))
	copy(out, t.children)
	return out
}

// AdoptChild appends a child to the task's child list.
func (t *TaskControlBlock) AdoptChild(c *TaskControlBlock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.children = append(t.children, c)
}

// TakeChildren removes and returns all of the task's children.
func (t *TaskControlBlock) TakeChildren() []*TaskControlBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.children
	t.children = nil
	return out
}

// HasChildMatching reports whether any child matches pid, where
// AnyChild matches every child.
func (t *TaskControlBlock) HasChildMatching(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.children {
		if pid == AnyChild || pid == c.pid {
			return true
		}
	}
	return false
}

// FindZombieChild returns the first child in list order that matches
// pid and has exited, or nil.
func (t *TaskControlBlock) FindZombieChild(pid int) *TaskControlBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.children {
		if (pid == AnyChild || pid == c.pid) && c.IsZombie() {
			return c
		}
	}
	return nil
}

// RemoveChild unlinks a child from the task's child list.
func (t *TaskControlBlock) RemoveChild(child *TaskControlBlock) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return true
		}
	}
	return false
}

// Priority returns the task's scheduling priority.
func (t *TaskControlBlock) Priority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// SetPriority stores a new priority. Values below MinPriority are the
// caller's to reject.
func (t *TaskControlBlock) SetPriority(prio int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = prio
}

// StridePass returns the task's accumulated stride pass value.
func (t *TaskControlBlock) StridePass() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pass
}

// AdvanceStride charges the task one stride proportional to the
// inverse of its priority.
func (t *TaskControlBlock) AdvanceStride() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pass += BigStride / uint64(t.priority)
}

// CountSyscall increments the invocation counter for a syscall id.
// Out-of-range ids are ignored.
func (t *TaskControlBlock) CountSyscall(id int) {
	if id < 0 || id >= MaxSyscallNum {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.syscallTimes[id]++
}

// SyscallCount returns the invocation counter for a syscall id.
func (t *TaskControlBlock) SyscallCount(id int) uint32 {
	if id < 0 || id >= MaxSyscallNum {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syscallTimes[id]
}

// SyscallTimes returns a copy of the full syscall counter table.
func (t *TaskControlBlock) SyscallTimes() [MaxSyscallNum]uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syscallTimes
}

// MarkScheduled stamps the task's start time on its first dispatch.
func (t *TaskControlBlock) MarkScheduled(nowMillis uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.scheduled {
		t.scheduled = true
		t.firstScheduledMS = nowMillis
	}
}

// StartTime returns the task's first-dispatch timestamp in
// milliseconds; ok is false if the task has never been scheduled.
func (t *TaskControlBlock) StartTime() (ms uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firstScheduledMS, t.scheduled
}

// ProgramBrk returns the current program break.
func (t *TaskControlBlock) ProgramBrk() uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uintptr(t.brk)
}

// HeapBottom returns the base of the heap-growth area.
func (t *TaskControlBlock) HeapBottom() uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uintptr(t.heapBottom)
}
