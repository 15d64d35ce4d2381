package main

import (
	"fmt"
	"log"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
	"kernos/pkg/syscall"
	"kernos/pkg/task"
	"kernos/pkg/timer"
)

func makeImage(name string) *loader.Image {
	return &loader.Image{
		Name:  name,
		Entry: 0x10000,
		Segments: []loader.Segment{
			{Start: 0x10000, Perm: mm.PermR | mm.PermX, Data: make([]byte, 512)},
		},
	}
}

func main() {
	fmt.Println("=== Kernos Task Management Demo ===")
	fmt.Println()

	// Create the kernel pieces
	clock := timer.SystemClock{}
	alloc := mm.NewStackFrameAllocator(0, 0x100000)
	sched := task.NewStrideScheduler()
	rt := task.NewRuntime(sched, alloc, clock)
	fmt.Println("Created stride scheduler and runtime")

	// Register executable images
	images := loader.NewRegistry()
	for _, name := range []string{"init", "worker"} {
		if err := images.Register(makeImage(name)); err != nil {
			log.Fatalf("Failed to register image %q: %v", name, err)
		}
	}
	fmt.Printf("Registered %d images\n", images.Count())

	// Boot the init task and dispatch it
	initTask := rt.BootInit(images.ByIndex(0))
	if rt.RunNext() == nil {
		log.Fatalf("Failed to dispatch init task")
	}
	fmt.Printf("Booted init task: PID=%d, State=%s\n", initTask.Pid(), initTask.Status())

	h := syscall.NewHandler(rt, images, clock)

	// Demonstrate memory mapping
	fmt.Println("\n--- Memory Mapping ---")
	if ret := h.Mmap(0x1000, 0x2000, 3); ret != 0 {
		log.Fatalf("mmap failed: %d", ret)
	}
	fmt.Printf("mmap(0x1000, 0x2000, rw) = 0, mapped pages: %d\n",
		initTask.Space().MappedPages())

	if ret := h.Mmap(0x1000, 0x2000, 3); ret == syscall.RetError {
		fmt.Println("mmap over the same range correctly rejected")
	}
	if ret := h.Mmap(0x4000, 0x1000, 7); ret == syscall.RetError {
		fmt.Println("mmap with an invalid port correctly rejected")
	}

	if ret := h.Munmap(0x1000, 0x2000); ret != 0 {
		log.Fatalf("munmap failed: %d", ret)
	}
	fmt.Printf("munmap(0x1000, 0x2000) = 0, mapped pages: %d\n",
		initTask.Space().MappedPages())

	// Keep one page mapped for syscall out-pointers.
	if ret := h.Mmap(0x1000, 0x1000, 3); ret != 0 {
		log.Fatalf("mmap for out-pointers failed: %d", ret)
	}
	outPtr := uintptr(0x1000)

	// Demonstrate the program break
	fmt.Println("\n--- Program Break ---")
	base := h.Sbrk(0x1000)
	if base == syscall.RetError {
		log.Fatalf("sbrk failed")
	}
	fmt.Printf("sbrk(+0x1000) moved the break from %#x to %#x\n",
		base, initTask.ProgramBrk())
	if ret := h.Sbrk(-0x1000); ret == syscall.RetError {
		log.Fatalf("sbrk shrink failed")
	}
	fmt.Printf("sbrk(-0x1000) restored the break to %#x\n", initTask.ProgramBrk())

	// Demonstrate scheduling priority
	fmt.Println("\n--- Scheduling Priority ---")
	if ret := h.SetPriority(1); ret == syscall.RetError {
		fmt.Println("set_priority(1) correctly rejected")
	}
	if ret := h.SetPriority(8); ret != 8 {
		log.Fatalf("set_priority(8) = %d", ret)
	}
	fmt.Printf("Init task now runs at priority %d\n", initTask.Priority())

	// Demonstrate forking
	fmt.Println("\n--- Forking ---")
	childPid := h.Fork()
	fmt.Printf("fork() in parent returned child PID %d\n", childPid)
	child := initTask.Children()[0]
	fmt.Printf("Child's pending return value: %d (fork returns 0 in the child)\n",
		child.TrapContext().ReturnValue())

	h.Yield()
	fmt.Printf("After yield the running task is PID %d\n", h.GetPid())
	h.Exit(7)
	fmt.Printf("Child exited; control is back in PID %d\n", h.GetPid())

	// Demonstrate reaping
	fmt.Println("\n--- Waiting ---")
	reaped := h.WaitPid(task.AnyChild, outPtr)
	code, err := mm.CopyIn(initTask.Space(), mm.VirtAddr(outPtr), 4)
	if err != nil {
		log.Fatalf("Failed to read exit code: %v", err)
	}
	fmt.Printf("waitpid(-1) reaped PID %d with exit code %d\n", reaped, code[0])

	// Demonstrate spawning
	fmt.Println("\n--- Spawning ---")
	if err := mm.CopyOut(initTask.Space(), mm.VirtAddr(outPtr+0x100), []byte("worker\x00")); err != nil {
		log.Fatalf("Failed to write path: %v", err)
	}
	workerPid := h.Spawn(outPtr + 0x100)
	if workerPid == syscall.RetError {
		log.Fatalf("spawn failed")
	}
	fmt.Printf("spawn(\"worker\") created PID %d without copying the parent\n", workerPid)

	if ret := h.WaitPid(int(workerPid), outPtr); ret == syscall.RetNotExited {
		fmt.Println("waitpid reports the worker has not exited yet")
	}
	h.Yield()
	h.Exit(0)
	if ret := h.WaitPid(int(workerPid), outPtr); ret != workerPid {
		log.Fatalf("waitpid(%d) = %d", workerPid, ret)
	}
	fmt.Printf("Worker PID %d reaped\n", workerPid)

	// Demonstrate time and task introspection
	fmt.Println("\n--- Time and Task Info ---")
	if ret := h.GetTime(outPtr); ret != 0 {
		log.Fatalf("get_time failed: %d", ret)
	}
	raw, err := mm.CopyIn(initTask.Space(), mm.VirtAddr(outPtr), syscall.TimeValSize)
	if err != nil {
		log.Fatalf("Failed to read TimeVal: %v", err)
	}
	tv := syscall.DecodeTimeVal(raw)
	fmt.Printf("get_time: %d.%06d seconds\n", tv.Sec, tv.Usec)

	h.Dispatch(syscall.SysYield, 0, 0, 0)
	h.Dispatch(syscall.SysYield, 0, 0, 0)
	if ret := h.TaskInfo(outPtr); ret != 0 {
		log.Fatalf("task_info failed: %d", ret)
	}
	raw, err = mm.CopyIn(initTask.Space(), mm.VirtAddr(outPtr), syscall.TaskInfoSize)
	if err != nil {
		log.Fatalf("Failed to read TaskInfo: %v", err)
	}
	info := syscall.DecodeTaskInfo(raw)
	fmt.Printf("task_info: status=%d, yield count=%d, running for %d ms\n",
		info.Status, info.SyscallTimes[syscall.SysYield], info.TimeMillis)

	// Shut down
	fmt.Println("\n--- Shutdown ---")
	h.Exit(0)
	fmt.Printf("Init exited; ready tasks remaining: %d\n", rt.ReadyCount())
	fmt.Printf("Frames still allocated: %d\n", alloc.Allocated())

	fmt.Println("\n=== Demo Complete ===")
}
