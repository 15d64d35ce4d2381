package task

import (
	"testing"

	"kernos/pkg/timer"
)

// newTestRuntime builds a FIFO runtime with a manual clock and a
// booted init task.
func newTestRuntime(t *testing.T) (*Runtime, *TaskControlBlock, *timer.ManualClock) {
	t.Helper()
	clock := timer.NewManualClock(1_000_000)
	rt := NewRuntime(NewFIFOScheduler(), newTestAlloc(), clock)
	init := rt.BootInit(testImage("init"))
	return rt, init, clock
}

// TestRunNextDispatch tests the Ready -> Running transition.
func TestRunNextDispatch(t *testing.T) {
	rt, init, clock := newTestRuntime(t)

	if rt.Current() != nil {
		t.Fatal("Current() should be nil before the first dispatch")
	}

	got := rt.RunNext()
	if got != init {
		t.Fatalf("RunNext() = %v, want init task", got)
	}
	if init.Status() != StatusRunning {
		t.Errorf("Status() = %v, want %v", init.Status(), StatusRunning)
	}
	if rt.Current() != init {
		t.Error("Current() != dispatched task")
	}
	if rt.Queued(init.Pid()) {
		t.Error("running task must not stay queued")
	}

	start, ok := init.StartTime()
	if !ok || start != clock.NowMillis() {
		t.Errorf("StartTime() = (%d, %v), want (%d, true)", start, ok, clock.NowMillis())
	}

	// The live context is now the task's first-run context.
	if rt.CPUContext().RA != TrapReturnPC {
		t.Errorf("CPUContext().RA = %#x, want TrapReturnPC", rt.CPUContext().RA)
	}
}

// TestSuspendRequeues tests the yield path.
func TestSuspendRequeues(t *testing.T) {
	rt, init, _ := newTestRuntime(t)
	rt.RunNext()

	other := init.Fork(rt.FrameAllocator(), rt.AllocPid())
	rt.AddTask(other)

	next := rt.SuspendCurrentAndRunNext()
	if next != other {
		t.Fatalf("SuspendCurrentAndRunNext() = pid %d, want pid %d", next.Pid(), other.Pid())
	}
	if init.Status() != StatusReady {
		t.Errorf("suspended Status() = %v, want %v", init.Status(), StatusReady)
	}
	if !rt.Queued(init.Pid()) {
		t.Error("suspended task not requeued")
	}
	if other.Status() != StatusRunning {
		t.Errorf("dispatched Status() = %v, want %v", other.Status(), StatusRunning)
	}

	// With only itself ready, a yield redispatches the same task.
	rt.SuspendCurrentAndRunNext()
	if rt.Current() != init {
		t.Error("expected FIFO to hand the CPU back to init")
	}
}

// TestExitReparentsToInit tests the orphan policy.
func TestExitReparentsToInit(t *testing.T) {
	rt, init, _ := newTestRuntime(t)
	rt.RunNext()

	middle := init.Fork(rt.FrameAllocator(), rt.AllocPid())
	rt.AddTask(middle)
	rt.SuspendCurrentAndRunNext() // middle now running

	if rt.Current() != middle {
		t.Fatalf("Current() = pid %d, want middle", rt.Current().Pid())
	}
	orphan := middle.Fork(rt.FrameAllocator(), rt.AllocPid())
	rt.AddTask(orphan)

	rt.ExitCurrentAndRunNext(3)

	if middle.Status() != StatusZombie {
		t.Errorf("Status() = %v, want %v", middle.Status(), StatusZombie)
	}
	if middle.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", middle.ExitCode())
	}
	if len(middle.Children()) != 0 {
		t.Error("zombie kept its children")
	}
	if orphan.ParentPID() != init.Pid() {
		t.Errorf("orphan ParentPID() = %d, want init %d", orphan.ParentPID(), init.Pid())
	}
	found := false
	for _, c := range init.Children() {
		if c == orphan {
			found = true
		}
	}
	if !found {
		t.Error("orphan not adopted by init")
	}

	// The zombie's address space was released.
	if middle.Space().MappedPages() != 0 {
		t.Error("zombie retained mappings")
	}
}

// TestExitDrainsToIdle tests that the runtime idles once every task
// has exited.
func TestExitDrainsToIdle(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	rt.RunNext()

	if next := rt.ExitCurrentAndRunNext(0); next != nil {
		t.Fatalf("ExitCurrentAndRunNext() = pid %d, want nil", next.Pid())
	}
	if rt.Current() != nil {
		t.Error("Current() should be nil after the last exit")
	}
	if rt.RunNext() != nil {
		t.Error("RunNext() on a drained runtime should return nil")
	}
}

// TestContextRoundTrip tests that a suspended task's switch context is
// restored intact on redispatch.
func TestContextRoundTrip(t *testing.T) {
	rt, init, _ := newTestRuntime(t)
	rt.RunNext()

	saved := *init.TaskCx()
	rt.SuspendCurrentAndRunNext() // alone in the queue: switches out and back in

	if rt.Current() != init {
		t.Fatal("expected init to be redispatched")
	}
	if rt.CPUContext() != saved {
		t.Errorf("CPUContext() = %+v, want saved context %+v", rt.CPUContext(), saved)
	}
}

// TestRunDrives tests the scheduler loop with preemption.
func TestRunDrives(t *testing.T) {
	rt, init, _ := newTestRuntime(t)
	worker := init.Spawn(rt.FrameAllocator(), testImage("worker"), rt.AllocPid())
	rt.AddTask(worker)

	steps := map[int]int{}
	rt.Run(func(cur *TaskControlBlock) {
		steps[cur.Pid()]++
		if steps[cur.Pid()] == 3 {
			rt.ExitCurrentAndRunNext(0)
		}
		// Otherwise return still Running: the loop preempts, the
		// timer-interrupt analogue.
	})

	if steps[init.Pid()] != 3 || steps[worker.Pid()] != 3 {
		t.Errorf("steps = %v, want 3 per task", steps)
	}
	if rt.Current() != nil || rt.ReadyCount() != 0 {
		t.Error("Run() returned with work left")
	}
}

// TestReapOwnershipCheck tests the defensive reap invariant.
func TestReapOwnershipCheck(t *testing.T) {
	rt, init, _ := newTestRuntime(t)
	rt.RunNext()

	child := init.Fork(rt.FrameAllocator(), rt.AllocPid())

	// A queued child is still owned by the scheduler.
	child.SetStatus(StatusZombie)
	rt.AddTask(child)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("reaping a queued child should panic")
			}
		}()
		rt.ReapOwnershipCheck(child)
	}()

	// A non-zombie is not reapable at all.
	ready := init.Fork(rt.FrameAllocator(), rt.AllocPid())
	defer func() {
		if recover() == nil {
			t.Error("reaping a non-zombie should panic")
		}
	}()
	rt.ReapOwnershipCheck(ready)
}
