package syscall

import (
	"encoding/binary"
	"fmt"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
	"kernos/pkg/task"
	"kernos/pkg/timer"
)

// Return sentinels shared by the entry points. Each distinct failure
// keeps its own value so user code can tell cases apart.
const (
	// RetError is the generic validation/lookup failure.
	RetError int64 = -1
	// RetNotExited is waitpid's "child exists but has not exited yet";
	// a poll signal, not an error.
	RetNotExited int64 = -2
)

// Handler is the syscall-facing control layer: thin dispatch that
// validates raw integer arguments, operates on the current task
// through the runtime, and translates results to the signed-word
// return convention.
type Handler struct {
	rt     *task.Runtime
	images *loader.Registry
	clock  timer.Clock
}

// NewHandler binds a control layer to a runtime, an image registry and
// a clock.
func NewHandler(rt *task.Runtime, images *loader.Registry, clock timer.Clock) *Handler {
	return &Handler{rt: rt, images: images, clock: clock}
}

// Dispatch routes one trap by syscall id, incrementing the current
// task's counter for that id exactly once. Unknown ids are a kernel
// fault: the trap entry shim only forwards the ids it knows.
func (h *Handler) Dispatch(id int, a0, a1, a2 uintptr) int64 {
	if cur := h.rt.Current(); cur != nil {
		cur.CountSyscall(id)
	}
	switch id {
	case SysExit:
		h.Exit(int(int32(a0)))
		return 0
	case SysYield:
		return h.Yield()
	case SysSetPriority:
		return h.SetPriority(int64(a0))
	case SysGetTime:
		return h.GetTime(a0)
	case SysGetPid:
		return h.GetPid()
	case SysSbrk:
		return h.Sbrk(int64(a0))
	case SysMunmap:
		return h.Munmap(a0, a1)
	case SysFork:
		return h.Fork()
	case SysExec:
		return h.Exec(a0)
	case SysMmap:
		return h.Mmap(a0, a1, a2)
	case SysWaitPid:
		return h.WaitPid(int(int64(a0)), a1)
	case SysSpawn:
		return h.Spawn(a0)
	case SysTaskInfo:
		return h.TaskInfo(a0)
	}
	panic(fmt.Sprintf("syscall: unsupported syscall id %d", id))
}

// current returns the Running task; a syscall with no running task is
// a broken trap path.
func (h *Handler) current() *task.TaskControlBlock {
	cur := h.rt.Current()
	if cur == nil {
		panic("syscall: no running task")
	}
	return cur
}

// Exit terminates the current task with code. Control never returns
// to the task: the runtime switches away and the task stays a zombie
// until reaped.
func (h *Handler) Exit(code int) {
	h.current()
	h.rt.ExitCurrentAndRunNext(code)
}

// Yield voluntarily gives up the CPU. Always succeeds.
func (h *Handler) Yield() int64 {
	h.current()
	h.rt.SuspendCurrentAndRunNext()
	return 0
}

// GetPid returns the current task's process id.
func (h *Handler) GetPid() int64 {
	return int64(h.current().Pid())
}

// Fork deep-copies the current task into a Ready child and returns
// the child's pid. The child's saved trap context has its return-value
// register forced to zero, so the shared return path yields 0 in the
// child. Fork cannot fail; frame exhaustion is fatal upstream.
func (h *Handler) Fork() int64 {
	cur := h.current()
	child := cur.Fork(h.rt.FrameAllocator(), h.rt.AllocPid())
	child.TrapContext().SetReturnValue(0)
	h.rt.AddTask(child)
	return int64(child.Pid())
}

// Exec replaces the current task's address space and trap context
// with the image registered under the path at pathPtr. Returns 0, or
// RetError if no image is registered under that name.
func (h *Handler) Exec(pathPtr uintptr) int64 {
	cur := h.current()
	path, err := mm.TranslatedStr(cur.Space(), mm.VirtAddr(pathPtr))
	if err != nil {
		return RetError
	}
	img, ok := h.images.Lookup(path)
	if !ok {
		return RetError
	}
	cur.Exec(img)
	return 0
}

// Spawn creates a Ready child directly from the image registered under
// the path at pathPtr, without copying the parent's address space, and
// returns the child's pid, or RetError for an unregistered path.
func (h *Handler) Spawn(pathPtr uintptr) int64 {
	cur := h.current()
	path, err := mm.TranslatedStr(cur.Space(), mm.VirtAddr(pathPtr))
	if err != nil {
		return RetError
	}
	img, ok := h.images.Lookup(path)
	if !ok {
		return RetError
	}
	child := cur.Spawn(h.rt.FrameAllocator(), img, h.rt.AllocPid())
	h.rt.AddTask(child)
	return int64(child.Pid())
}

// WaitPid reaps an exited child. pid is an exact id or task.AnyChild.
// Returns RetError when no child matches at all, RetNotExited when a
// match exists but none is a zombie (the caller re-polls later), or
// the reaped child's pid after writing its exit code through the
// translation layer to outPtr. Never blocks.
func (h *Handler) WaitPid(pid int, outPtr uintptr) int64 {
	cur := h.current()
	if !cur.HasChildMatching(pid) {
		return RetError
	}
	child := cur.FindZombieChild(pid)
	if child == nil {
		return RetNotExited
	}

	// The destination is validated before the child is unlinked so a
	// bad pointer cannot leave a half-reaped task behind. An unmapped
	// destination here is an invariant violation, not a user error.
	if _, err := mm.TranslatedByteBuffer(cur.Space(), mm.VirtAddr(outPtr), 4); err != nil {
		panic(fmt.Sprintf("syscall: waitpid exit-code pointer %#x not mapped", outPtr))
	}

	cur.RemoveChild(child)
	h.rt.ReapOwnershipCheck(child)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(int32(child.ExitCode())))
	if err := mm.CopyOut(cur.Space(), mm.VirtAddr(outPtr), buf); err != nil {
		panic("syscall: waitpid exit-code write failed: " + err.Error())
	}

	h.rt.ReleasePid(child.Pid())
	return int64(child.Pid())
}

// GetTime fills a TimeVal at outPtr. The destination may straddle a
// page boundary, so the copy goes byte-wise through the translation
// layer rather than through a single dereference. Returns 0, or
// RetError for an unmapped destination.
func (h *Handler) GetTime(outPtr uintptr) int64 {
	cur := h.current()
	us := h.clock.NowMicros()
	tv := TimeVal{Sec: us / 1_000_000, Usec: us % 1_000_000}
	if err := mm.CopyOut(cur.Space(), mm.VirtAddr(outPtr), tv.Encode()); err != nil {
		return RetError
	}
	return 0
}

// TaskInfo fills a TaskInfo record at outPtr: status, syscall counts,
// and milliseconds since the task was first scheduled. Returns 0, or
// RetError for an unmapped destination.
func (h *Handler) TaskInfo(outPtr uintptr) int64 {
	cur := h.current()
	info := TaskInfo{
		Status:       cur.Status().Code(),
		SyscallTimes: cur.SyscallTimes(),
	}
	if start, ok := cur.StartTime(); ok {
		info.TimeMillis = h.clock.NowMillis() - start
	}
	if err := mm.CopyOut(cur.Space(), mm.VirtAddr(outPtr), info.Encode()); err != nil {
		return RetError
	}
	return 0
}

// SyscallCount reads the current task's invocation counter for one
// syscall id. Bookkeeping read only.
func (h *Handler) SyscallCount(id int) int64 {
	return int64(h.current().SyscallCount(id))
}

// Valid mmap port values: read, write, read+write. Execute is never
// grantable through mmap.
const (
	portRead      = 1
	portWrite     = 2
	portReadWrite = 3
)

// Mmap maps [start, start+length) as a framed area with the
// permission encoded by port plus the user-accessible bit. Rejects an
// unaligned start, a zero length, a port outside the three valid
// combinations, and any page in range already being mapped; failure
// leaves the address space untouched. Returns 0 on success.
func (h *Handler) Mmap(start, length, port uintptr) int64 {
	va := mm.VirtAddr(start)
	if !va.Aligned() || length == 0 {
		return RetError
	}
	if port != portRead && port != portWrite && port != portReadWrite {
		return RetError
	}
	perm := mm.MapPermission(port<<1) | mm.PermU

	cur := h.current()
	space := cur.Space()
	end := va + mm.VirtAddr(length)
	for vpn := va.Floor(); vpn < end.Ceil(); vpn++ {
		if pte, ok := space.Translate(vpn); ok && pte.Valid() {
			return RetError
		}
	}
	if err := space.InsertFramedArea(va, end, perm); err != nil {
		return RetError
	}
	return 0
}

// Munmap removes the area whose bounds exactly match
// [start, start+length), unmapping its pages and freeing their
// frames. Rejects an unaligned start, a zero length, and any range
// that is not the exact bounds of an existing area. A zero length
// would otherwise exact-match the empty program-break area and tear
// out the heap. Returns 0 on success.
func (h *Handler) Munmap(start, length uintptr) int64 {
	va := mm.VirtAddr(start)
	if !va.Aligned() || length == 0 {
		return RetError
	}
	cur := h.current()
	if err := cur.Space().RemoveAreaMatching(va, va+mm.VirtAddr(length)); err != nil {
		return RetError
	}
	return 0
}

// Sbrk moves the program break by delta bytes, which may be negative,
// and returns the previous break, or RetError if the change is
// invalid.
func (h *Handler) Sbrk(delta int64) int64 {
	cur := h.current()
	old, ok := cur.ChangeProgramBrk(delta)
	if !ok {
		return RetError
	}
	return int64(old)
}

// SetPriority stores a new scheduling priority and echoes it back, or
// returns RetError for degenerate values (prio <= 1).
func (h *Handler) SetPriority(prio int64) int64 {
	if prio < task.MinPriority {
		return RetError
	}
	h.current().SetPriority(int(prio))
	return prio
}
