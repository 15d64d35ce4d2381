/*
Package syscall is the kernos syscall-facing control layer.

The trap entry shim hands each system call here as a syscall id plus
raw integer arguments; Dispatch bumps the current task's counter for
that id and routes to the matching entry point. Entry points validate
arguments before touching any shared state and translate outcomes to
the integer convention: a non-negative success value, or a small
negative sentinel per distinct failure.

Writes into user memory (waitpid's exit code, get_time's TimeVal,
task_info's record) go byte-wise through the mm translation layer,
because the caller's destination may straddle a page boundary and is
then not physically contiguous.

Failures split three ways: argument-validation and lookup misses
return sentinels with nothing mutated; waitpid's "not yet exited" is a
poll signal, retried by re-issuing the call after a yield; broken
kernel invariants (a reaped child still owned by the scheduler, an
unmapped waitpid destination discovered mid-reap) panic.
*/
package syscall
