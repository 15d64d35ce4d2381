package task

import (
	"testing"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
)

// testImage builds a minimal one-segment image for task tests.
func testImage(name string) *loader.Image {
	return &loader.Image{
		Name:  name,
		Entry: 0x10000,
		Segments: []loader.Segment{
			{Start: 0x10000, Perm: mm.PermR | mm.PermX, Data: make([]byte, 256)},
		},
	}
}

// newTestAlloc builds a frame allocator large enough for the tests.
func newTestAlloc() *mm.StackFrameAllocator {
	return mm.NewStackFrameAllocator(0, 0x10000)
}

// TestFIFOOrder tests strict arrival-order dispatch.
func TestFIFOOrder(t *testing.T) {
	alloc := newTestAlloc()
	s := NewFIFOScheduler()

	a := NewTask(alloc, testImage("a"), 0)
	b := NewTask(alloc, testImage("b"), 1)
	c := NewTask(alloc, testImage("c"), 2)

	s.Add(a)
	s.Add(b)
	s.Add(c)

	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if !s.Contains(1) {
		t.Error("Contains(1) = false, want true")
	}

	for i, want := range []*TaskControlBlock{a, b, c} {
		if got := s.Fetch(); got != want {
			t.Errorf("Fetch() #%d = pid %d, want pid %d", i, got.Pid(), want.Pid())
		}
	}
	if got := s.Fetch(); got != nil {
		t.Errorf("Fetch() on empty queue = pid %d, want nil", got.Pid())
	}
}

// TestStrideBias tests that dispatch counts track priority under the
// stride scheduler.
func TestStrideBias(t *testing.T) {
	alloc := newTestAlloc()
	s := NewStrideScheduler()

	fast := NewTask(alloc, testImage("fast"), 0)
	fast.SetPriority(4)
	slow := NewTask(alloc, testImage("slow"), 1)
	slow.SetPriority(2)

	s.Add(fast)
	s.Add(slow)

	counts := map[int]int{}
	for i := 0; i < 30; i++ {
		got := s.Fetch()
		counts[got.Pid()]++
		s.Add(got)
	}

	// Priority 4 should be dispatched roughly twice as often as
	// priority 2: 20 vs 10 of 30, give or take a boundary dispatch.
	if counts[0] < 18 || counts[0] > 22 {
		t.Errorf("priority-4 dispatches = %d, want about 20", counts[0])
	}
	if counts[0] <= counts[1] {
		t.Errorf("priority 4 (%d) should outrun priority 2 (%d)", counts[0], counts[1])
	}
}

// TestStrideTieBreak tests that equal pass values dispatch the task
// queued earliest.
func TestStrideTieBreak(t *testing.T) {
	alloc := newTestAlloc()
	s := NewStrideScheduler()

	a := NewTask(alloc, testImage("a"), 0)
	b := NewTask(alloc, testImage("b"), 1)
	s.Add(a)
	s.Add(b)

	if got := s.Fetch(); got != a {
		t.Errorf("Fetch() = pid %d, want pid 0", got.Pid())
	}
}

// TestPidAllocator tests pid recycling.
func TestPidAllocator(t *testing.T) {
	a := NewPidAllocator()

	for want := 0; want < 3; want++ {
		if got := a.Alloc(); got != want {
			t.Errorf("Alloc() = %d, want %d", got, want)
		}
	}

	a.Dealloc(1)
	if got := a.Alloc(); got != 1 {
		t.Errorf("Alloc() after recycle = %d, want 1", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("double Dealloc should panic")
		}
	}()
	a.Dealloc(2)
	a.Dealloc(2)
}
