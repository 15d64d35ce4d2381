package task

// TrapReturnPC stands in for the address of the trap-return entry
// point. A task's very first switch-in is seeded with a context whose
// return address targets it, so first-run looks identical to a resumed
// task as far as the switch primitive is concerned.
const TrapReturnPC uintptr = 0xffff_ffff_0000

// TaskContext is the callee-saved execution state a task parks in when
// it is switched out: return address, kernel stack pointer, and the
// twelve callee-saved registers. Everything else lives on the task's
// kernel stack across the switch.
type TaskContext struct {
	// RA is the address execution resumes at after switch-in.
	RA uintptr
	// SP is the task's kernel stack pointer.
	SP uintptr
	// S holds the callee-saved registers s0..s11.
	S [12]uintptr
}

// ZeroContext returns an all-zero context, used as the save slot for
// the very first switch out of boot.
func ZeroContext() TaskContext {
	return TaskContext{}
}

// GotoTrapReturn builds the context a freshly created task first runs
// with: return address at the trap-return entry point and the stack
// pointer at the top of the task's kernel stack.
func GotoTrapReturn(kstackTop uintptr) TaskContext {
	return TaskContext{RA: TrapReturnPC, SP: kstackTop}
}
