package task

import (
	"fmt"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
	"kernos/pkg/timer"
)

// Runtime is the explicit scheduler loop that owns all task state:
// the ready set, the single Running task, the pid and frame
// allocators, and the idle switch context control parks in between
// tasks. There is no hidden global; the trap-handling path threads a
// Runtime through explicitly, which also keeps the core testable in
// isolation.
//
// Exactly one task is Running at any instant. Context switches are
// serialized by construction: only the runtime performs them, and all
// task locks are released before a switch.
type Runtime struct {
	sched  Scheduler
	frames mm.FrameAllocator
	clock  timer.Clock
	pids   *PidAllocator

	current  *TaskControlBlock
	initTask *TaskControlBlock

	// cpu models the live register file; idleCx is where control
	// parks between tasks.
	cpu    TaskContext
	idleCx TaskContext
}

// NewRuntime creates a runtime dispatching through sched and drawing
// frames from frames.
func NewRuntime(sched Scheduler, frames mm.FrameAllocator, clock timer.Clock) *Runtime {
	return &Runtime{
		sched:  sched,
		frames: frames,
		clock:  clock,
		pids:   NewPidAllocator(),
		idleCx: ZeroContext(),
	}
}

// FrameAllocator returns the runtime's physical frame allocator.
func (r *Runtime) FrameAllocator() mm.FrameAllocator { return r.frames }

// Clock returns the runtime's clock.
func (r *Runtime) Clock() timer.Clock { return r.clock }

// AllocPid allocates a process id.
func (r *Runtime) AllocPid() int { return r.pids.Alloc() }

// ReleasePid recycles a reaped task's process id.
func (r *Runtime) ReleasePid(pid int) { r.pids.Dealloc(pid) }

// BootInit creates the init task from an image and makes it runnable.
// Orphans are reparented to this task.
func (r *Runtime) BootInit(img *loader.Image) *TaskControlBlock {
	if r.initTask != nil {
		panic("task: init task already booted")
	}
	t := NewTask(r.frames, img, r.AllocPid())
	r.initTask = t
	r.AddTask(t)
	return t
}

// InitTask returns the init task.
func (r *Runtime) InitTask() *TaskControlBlock { return r.initTask }

// AddTask makes a task runnable.
func (r *Runtime) AddTask(t *TaskControlBlock) {
	r.sched.Add(t)
}

// Current returns the Running task, or nil while the runtime idles.
func (r *Runtime) Current() *TaskControlBlock { return r.current }

// Queued reports whether a pid is waiting in the ready set.
func (r *Runtime) Queued(pid int) bool { return r.sched.Contains(pid) }

// ReadyCount returns the number of tasks in the ready set.
func (r *Runtime) ReadyCount() int { return r.sched.Len() }

// CPUContext returns the current live switch context.
func (r *Runtime) CPUContext() TaskContext { return r.cpu }

// switchTo saves the live register file into cur and resumes from
// next. Callers must hold no task locks across the switch.
func (r *Runtime) switchTo(cur, next *TaskContext) {
	*cur = r.cpu
	r.cpu = *next
}

// RunNext dispatches the next ready task: Ready becomes Running, the
// start timestamp is stamped, and control switches from the idle
// context into the task. Returns nil when the ready set is empty,
// which with no Running task means all work is complete.
func (r *Runtime) RunNext() *TaskControlBlock {
	if r.current != nil {
		panic("task: RunNext with a task still running")
	}
	t := r.sched.Fetch()
	if t == nil {
		return nil
	}
	t.SetStatus(StatusRunning)
	t.MarkScheduled(r.clock.NowMillis())
	r.current = t
	r.switchTo(&r.idleCx, t.TaskCx())
	return t
}

// SuspendCurrentAndRunNext suspends the Running task back to Ready,
// requeues it, and dispatches the next ready task. This is the
// voluntary-yield and timer-preemption path.
func (r *Runtime) SuspendCurrentAndRunNext() *TaskControlBlock {
	t := r.current
	if t == nil {
		panic("task: suspend with no running task")
	}
	t.SetStatus(StatusReady)
	r.switchTo(t.TaskCx(), &r.idleCx)
	r.current = nil
	r.sched.Add(t)
	return r.RunNext()
}

// ExitCurrentAndRunNext makes the Running task a zombie with the given
// exit code, reparents its un-reaped children to the init task,
// releases its address space, and dispatches the next ready task.
// The exiting task never runs again; its pid and PCB survive until a
// parent reaps it.
func (r *Runtime) ExitCurrentAndRunNext(code int) *TaskControlBlock {
	t := r.current
	if t == nil {
		panic("task: exit with no running task")
	}
	t.SetStatus(StatusZombie)
	t.SetExitCode(code)

	for _, child := range t.TakeChildren() {
		if r.initTask != nil && t != r.initTask {
			child.SetParentPID(r.initTask.Pid())
			r.initTask.AdoptChild(child)
		} else {
			child.SetParentPID(NoParent)
		}
	}

	t.Space().Recycle()
	r.switchTo(t.TaskCx(), &r.idleCx)
	r.current = nil
	return r.RunNext()
}

// ReapOwnershipCheck panics unless the reaped child is quiesced: a
// zombie that is neither Running nor still queued. A violation means
// another owner still holds the task, a broken invariant rather than a
// user error.
func (r *Runtime) ReapOwnershipCheck(child *TaskControlBlock) {
	if !child.IsZombie() {
		panic(fmt.Sprintf("task: reaping non-zombie pid %d", child.Pid()))
	}
	if r.current == child || r.Queued(child.Pid()) {
		panic(fmt.Sprintf("task: reaped pid %d still owned by the scheduler", child.Pid()))
	}
}

// Run drives tasks until the ready set drains. Each dispatched task
// executes one step; a task that returns from its step still Running
// is preempted, the timer-interrupt analogue. Steps issue their
// syscalls through the control layer, which calls back into the
// runtime for yield and exit.
func (r *Runtime) Run(step func(*TaskControlBlock)) {
	for {
		t := r.current
		if t == nil {
			t = r.RunNext()
		}
		if t == nil {
			return
		}
		step(t)
		if r.current == t && t.Status() == StatusRunning {
			r.SuspendCurrentAndRunNext()
		}
	}
}
