package syscall

import (
	"encoding/binary"

	"kernos/pkg/task"
)

// Syscall ids, as passed by user code in the syscall register.
const (
	SysExit        = 93
	SysYield       = 124
	SysSetPriority = 140
	SysGetTime     = 169
	SysGetPid      = 172
	SysSbrk        = 214
	SysMunmap      = 215
	SysFork        = 220
	SysExec        = 221
	SysMmap        = 222
	SysWaitPid     = 260
	SysSpawn       = 400
	SysTaskInfo    = 410
)

// TimeVal is the two-field timestamp get_time writes to user memory.
type TimeVal struct {
	// Sec is whole seconds.
	Sec uint64
	// Usec is the microsecond remainder.
	Usec uint64
}

// TimeValSize is the encoded size of a TimeVal in bytes.
const TimeValSize = 16

// Encode serializes the TimeVal in its user-visible byte layout.
func (tv TimeVal) Encode() []byte {
	buf := make([]byte, TimeValSize)
	binary.LittleEndian.PutUint64(buf[0:8], tv.Sec)
	binary.LittleEndian.PutUint64(buf[8:16], tv.Usec)
	return buf
}

// DecodeTimeVal parses an encoded TimeVal.
func DecodeTimeVal(buf []byte) TimeVal {
	return TimeVal{
		Sec:  binary.LittleEndian.Uint64(buf[0:8]),
		Usec: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// TaskInfo is the introspection record task_info writes to user
// memory: the task's status code, its per-syscall invocation counts,
// and the milliseconds elapsed since it was first scheduled.
type TaskInfo struct {
	// Status is the numeric status code (see task.TaskStatus.Code).
	Status uint64
	// SyscallTimes is the per-syscall-id invocation counter table.
	SyscallTimes [task.MaxSyscallNum]uint32
	// TimeMillis is the time since the task was first scheduled.
	TimeMillis uint64
}

// TaskInfoSize is the encoded size of a TaskInfo in bytes.
const TaskInfoSize = 8 + 4*task.MaxSyscallNum + 8

// Encode serializes the TaskInfo in its user-visible byte layout.
func (ti TaskInfo) Encode() []byte {
	buf := make([]byte, TaskInfoSize)
	binary.LittleEndian.PutUint64(buf[0:8], ti.Status)
	for i, n := range ti.SyscallTimes {
		binary.LittleEndian.PutUint32(buf[8+4*i:], n)
	}
	binary.LittleEndian.PutUint64(buf[TaskInfoSize-8:], ti.TimeMillis)
	return buf
}

// DecodeTaskInfo parses an encoded TaskInfo.
func DecodeTaskInfo(buf []byte) TaskInfo {
	var ti TaskInfo
	ti.Status = binary.LittleEndian.Uint64(buf[0:8])
	for i := range ti.SyscallTimes {
		ti.SyscallTimes[i] = binary.LittleEndian.Uint32(buf[8+4*i:])
	}
	ti.TimeMillis = binary.LittleEndian.Uint64(buf[TaskInfoSize-8:])
	return ti
}
