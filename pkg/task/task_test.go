package task

import (
	"bytes"
	"testing"

	"kernos/pkg/mm"
	"kernos/pkg/trap"
)

// TestNewTaskLayout tests the initial PCB and address space of a task.
func TestNewTaskLayout(t *testing.T) {
	alloc := newTestAlloc()
	tk := NewTask(alloc, testImage("init"), 0)

	if tk.Status() != StatusReady {
		t.Errorf("Status() = %v, want %v", tk.Status(), StatusReady)
	}
	if tk.Priority() != DefaultPriority {
		t.Errorf("Priority() = %d, want %d", tk.Priority(), DefaultPriority)
	}
	if tk.ParentPID() != NoParent {
		t.Errorf("ParentPID() = %d, want NoParent", tk.ParentPID())
	}
	if tk.ProgramBrk() != tk.HeapBottom() {
		t.Errorf("ProgramBrk() = %#x, want heap bottom %#x", tk.ProgramBrk(), tk.HeapBottom())
	}

	// Segment, stack, trap-context page and empty break area.
	if got := len(tk.Space().Areas()); got != 4 {
		t.Errorf("Areas() = %d, want 4", got)
	}

	// Trap context starts at the entry point with the stack pointer on
	// the user stack.
	cx := tk.TrapContext()
	if cx.PC != 0x10000 {
		t.Errorf("trap PC = %#x, want 0x10000", cx.PC)
	}
	if cx.Regs[trap.RegSP] == 0 {
		t.Error("trap SP not set")
	}

	// First-run switch context targets the trap-return entry point.
	if tk.TaskCx().RA != TrapReturnPC {
		t.Errorf("TaskCx().RA = %#x, want TrapReturnPC", tk.TaskCx().RA)
	}
	if tk.TaskCx().SP != tk.KernelStackTop() {
		t.Errorf("TaskCx().SP = %#x, want kernel stack top", tk.TaskCx().SP)
	}

	// The trap-context page is mapped without user access.
	pte, ok := tk.Space().Translate(mm.VirtAddr(TrapContextBase).Floor())
	if !ok {
		t.Fatal("trap-context page not mapped")
	}
	if pte.UserAccessible() {
		t.Error("trap-context page should not be user accessible")
	}
}

// TestForkDeepCopy tests that fork copies the address space into
// disjoint frames.
func TestForkDeepCopy(t *testing.T) {
	alloc := newTestAlloc()
	parent := NewTask(alloc, testImage("parent"), 0)

	// Scribble a marker into the parent's stack page.
	marker := []byte("fork-marker")
	stackVA := mm.VirtAddr(0x12000)
	if err := mm.CopyOut(parent.Space(), stackVA, marker); err != nil {
		t.Fatalf("CopyOut() error = %v", err)
	}

	before := alloc.Allocated()
	child := parent.Fork(alloc, 1)

	if child.Status() != StatusReady {
		t.Errorf("child Status() = %v, want %v", child.Status(), StatusReady)
	}
	if child.ParentPID() != parent.Pid() {
		t.Errorf("child ParentPID() = %d, want %d", child.ParentPID(), parent.Pid())
	}
	if kids := parent.Children(); len(kids) != 1 || kids[0] != child {
		t.Error("child not linked into parent's child list")
	}
	if alloc.Allocated() != 2*before {
		t.Errorf("Allocated() = %d, want %d (every frame copied)", alloc.Allocated(), 2*before)
	}

	got, err := mm.CopyIn(child.Space(), stackVA, len(marker))
	if err != nil {
		t.Fatalf("CopyIn() error = %v", err)
	}
	if !bytes.Equal(got, marker) {
		t.Errorf("child stack = %q, want %q", got, marker)
	}

	// Mutating the parent after fork never affects the child.
	if err := mm.CopyOut(parent.Space(), stackVA, []byte("overwritten")); err != nil {
		t.Fatalf("CopyOut() error = %v", err)
	}
	got, _ = mm.CopyIn(child.Space(), stackVA, len(marker))
	if !bytes.Equal(got, marker) {
		t.Error("parent mutation leaked into the child")
	}

	// The child resumes from a copy of the parent's trap context.
	if child.TrapContext().PC != parent.TrapContext().PC {
		t.Error("child trap context differs from parent's")
	}
}

// TestExecPreservesIdentity tests that exec rebuilds state in place.
func TestExecPreservesIdentity(t *testing.T) {
	alloc := newTestAlloc()
	tk := NewTask(alloc, testImage("old"), 7)
	child := tk.Fork(alloc, 8)
	tk.SetPriority(5)

	if _, ok := tk.ChangeProgramBrk(mm.PageSize); !ok {
		t.Fatal("ChangeProgramBrk() failed")
	}
	framesBefore := alloc.Allocated()

	tk.Exec(testImage("new"))

	if tk.Pid() != 7 {
		t.Errorf("Pid() = %d, want 7 (exec must not create a new PCB)", tk.Pid())
	}
	if kids := tk.Children(); len(kids) != 1 || kids[0] != child {
		t.Error("exec dropped family links")
	}
	if tk.Priority() != 5 {
		t.Errorf("Priority() = %d, want 5", tk.Priority())
	}
	if tk.ProgramBrk() != tk.HeapBottom() {
		t.Error("exec did not reset the program break")
	}
	if got := len(tk.Space().Areas()); got != 4 {
		t.Errorf("Areas() = %d, want 4 (fresh layout)", got)
	}
	// The old space, grown heap page included, was released; the fresh
	// layout is one page smaller.
	if alloc.Allocated() != framesBefore-1 {
		t.Errorf("Allocated() = %d, want %d", alloc.Allocated(), framesBefore-1)
	}
}

// TestSpawnDoesNotCopyParent tests that spawn builds the child straight
// from the image.
func TestSpawnDoesNotCopyParent(t *testing.T) {
	alloc := newTestAlloc()
	parent := NewTask(alloc, testImage("parent"), 0)

	// Extra mapping in the parent that a fork would copy.
	if err := parent.Space().InsertFramedArea(0x1000, 0x3000, mm.PermR|mm.PermW|mm.PermU); err != nil {
		t.Fatalf("InsertFramedArea() error = %v", err)
	}

	child := parent.Spawn(alloc, testImage("spawned"), 1)

	if child.ParentPID() != parent.Pid() {
		t.Errorf("child ParentPID() = %d, want %d", child.ParentPID(), parent.Pid())
	}
	if kids := parent.Children(); len(kids) != 1 || kids[0] != child {
		t.Error("spawned child not linked into parent's child list")
	}
	if got := len(child.Space().Areas()); got != 4 {
		t.Errorf("child Areas() = %d, want 4 (no parent mappings copied)", got)
	}
	if _, ok := child.Space().Translate(mm.VirtAddr(0x1000).Floor()); ok {
		t.Error("spawn copied a parent-only mapping")
	}
}

// TestChangeProgramBrk tests sbrk-style break movement.
func TestChangeProgramBrk(t *testing.T) {
	alloc := newTestAlloc()
	tk := NewTask(alloc, testImage("t"), 0)
	base := tk.ProgramBrk()

	old, ok := tk.ChangeProgramBrk(mm.PageSize)
	if !ok || old != base {
		t.Fatalf("grow = (%#x, %v), want (%#x, true)", old, ok, base)
	}
	if tk.ProgramBrk() != base+mm.PageSize {
		t.Errorf("ProgramBrk() = %#x, want %#x", tk.ProgramBrk(), base+mm.PageSize)
	}

	old, ok = tk.ChangeProgramBrk(-mm.PageSize)
	if !ok || old != base+mm.PageSize {
		t.Fatalf("shrink = (%#x, %v), want (%#x, true)", old, ok, base+mm.PageSize)
	}
	if tk.ProgramBrk() != base {
		t.Errorf("ProgramBrk() = %#x, want original %#x", tk.ProgramBrk(), base)
	}

	// Shrinking below the heap base fails without moving the break.
	if _, ok := tk.ChangeProgramBrk(-mm.PageSize); ok {
		t.Error("shrink below heap base should fail")
	}
	if tk.ProgramBrk() != base {
		t.Error("failed shrink moved the break")
	}
}

// TestSyscallCounters tests the per-task syscall bookkeeping.
func TestSyscallCounters(t *testing.T) {
	alloc := newTestAlloc()
	tk := NewTask(alloc, testImage("t"), 0)

	tk.CountSyscall(124)
	tk.CountSyscall(124)
	tk.CountSyscall(93)
	tk.CountSyscall(-1)             // ignored
	tk.CountSyscall(MaxSyscallNum)  // ignored

	if got := tk.SyscallCount(124); got != 2 {
		t.Errorf("SyscallCount(124) = %d, want 2", got)
	}
	if got := tk.SyscallCount(93); got != 1 {
		t.Errorf("SyscallCount(93) = %d, want 1", got)
	}
	if got := tk.SyscallCount(500); got != 0 {
		t.Errorf("SyscallCount(500) = %d, want 0", got)
	}

	times := tk.SyscallTimes()
	if times[124] != 2 {
		t.Errorf("SyscallTimes()[124] = %d, want 2", times[124])
	}
}
