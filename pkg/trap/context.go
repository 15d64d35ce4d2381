// Package trap holds the saved user-mode register snapshot taken on
// every kernel entry and restored on every kernel exit. The trap entry
// and exit shim itself is an external collaborator; this package only
// defines the context it saves into.
package trap

// Register file geometry and the registers the syscall convention
// cares about.
const (
	// NumRegs is the number of general-purpose registers.
	NumRegs = 32
	// RegSP is the stack pointer register index.
	RegSP = 2
	// RegA0 is the first argument / return value register index. The
	// syscall return path writes results here, and fork forces it to
	// zero in the child's saved context.
	RegA0 = 10
)

// Context is one task's saved user-mode state. Exactly one live copy
// exists per task; it is overwritten on every trap entry and read on
// every trap return.
type Context struct {
	// Regs holds the general-purpose registers.
	Regs [NumRegs]uint64
	// PC is the user program counter to resume at.
	PC uint64
}

// AppInitContext builds the context a task starts user execution with:
// the program counter at the image entry point and the stack pointer
// at the top of the user stack.
func AppInitContext(entry, userSP uint64) Context {
	var cx Context
	cx.PC = entry
	cx.Regs[RegSP] = userSP
	return cx
}

// SetReturnValue stores a syscall result in the return-value register.
func (cx *Context) SetReturnValue(v uint64) {
	cx.Regs[RegA0] = v
}

// ReturnValue reads the return-value register.
func (cx *Context) ReturnValue() uint64 {
	return cx.Regs[RegA0]
}
