/*
Package task implements the kernos process core: the task control
block, the context-switch primitive, the schedulers, and the runtime
loop that ties them together.

# Task lifecycle

A task moves through Ready -> Running -> {Ready, Zombie}. Zombie is
terminal: the task keeps only its exit code until the parent reaps it
with waitpid, at which point the PCB is unlinked and its pid recycled.
A task that exits with un-reaped children hands them to the init task.

Family links form a tree, never a cycle: parents own their children
through the child list, children refer back to the parent by pid only.

# Scheduling

Two schedulers satisfy the same interface. FIFOScheduler dispatches in
strict arrival order and is the default. StrideScheduler picks the
lowest accumulated pass and charges BigStride/priority per dispatch,
so a priority of 2k gets roughly twice the dispatches of priority k.
Priorities below 2 are rejected at the syscall layer.

# The runtime

Runtime is the single-core scheduler loop. It owns the current task
and the ready set outright; kernel code reaches shared task state only
through it, so exclusive access needs no runtime-checked cell. Context
switches are plain saves and restores of TaskContext performed by the
runtime with no task locks held; a freshly created task's context is
seeded with GotoTrapReturn so its first dispatch is indistinguishable
from a resume.
*/
package task
