package task

import "sync"

// BigStride is the stride numerator: a task's pass grows by
// BigStride/priority each time it is dispatched, so higher-priority
// tasks accumulate pass more slowly and run more often.
const BigStride uint64 = 1 << 20

// Scheduler maintains the runnable set and picks the next task to run.
// Membership is exclusive: a task is queued here, or Running, or a
// Zombie, never more than one at once.
type Scheduler interface {
	// Add makes a task runnable.
	Add(t *TaskControlBlock)
	// Fetch removes and returns the next task to run, or nil.
	Fetch() *TaskControlBlock
	// Len returns the number of queued tasks.
	Len() int
	// Contains reports whether a pid is queued.
	Contains(pid int) bool
}

// FIFOScheduler dispatches in strict arrival order: Add appends,
// Fetch pops the head. Priority is stored on the task but does not
// reorder the queue.
type FIFOScheduler struct {
	mu    sync.Mutex
	queue []*TaskControlBlock
}

// NewFIFOScheduler creates an empty FIFO scheduler.
func NewFIFOScheduler() *FIFOScheduler {
	return &FIFOScheduler{}
}

// Add appends a task to the ready queue.
func (s *FIFOScheduler) Add(t *TaskControlBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, t)
}

// Fetch pops the head of the ready queue, or returns nil.
func (s *FIFOScheduler) Fetch() *TaskControlBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	t := s.queue[0]
	s.queue = s.queue[1:]
	return t
}

// Len returns the number of queued tasks.
func (s *FIFOScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Contains reports whether a pid is queued.
func (s *FIFOScheduler) Contains(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.queue {
		if t.Pid() == pid {
			return true
		}
	}
	return false
}

// StrideScheduler dispatches the queued task with the lowest
// accumulated pass, charging it BigStride/priority on each dispatch.
// Dwell time is therefore proportional to priority instead of priority
// being a stored-but-ignored field. Ties break toward the task queued
// earliest.
type StrideScheduler struct {
	mu    sync.Mutex
	queue []*TaskControlBlock
}

// NewStrideScheduler creates an empty stride scheduler.
func NewStrideScheduler() *StrideScheduler {
	return &StrideScheduler{}
}

// Add makes a task runnable.
func (s *StrideScheduler) Add(t *TaskControlBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, t)
}

// Fetch removes and returns the task with the smallest pass value,
// advancing its stride.
func (s *StrideScheduler) Fetch() *TaskControlBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(s.queue); i++ {
		if s.queue[i].StridePass() < s.queue[best].StridePass() {
			best = i
		}
	}
	t := s.queue[best]
	s.queue = append(s.queue[:best], s.queue[best+1:]...)
	t.AdvanceStride()
	return t
}

// Len returns the number of queued tasks.
func (s *StrideScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Contains reports whether a pid is queued.
func (s *StrideScheduler) Contains(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.queue {
		if t.Pid() == pid {
			return true
		}
	}
	return false
}
