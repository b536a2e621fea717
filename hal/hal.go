// Package hal is the hardware abstraction the kernel runs on: a log sink, the guest CPU and
// memory, and a host tick source.
package hal

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// Guest virtual memory layout used by the host HAL.
const (
	CodeVAddr          uint32 = 0x00100000
	CodeSize           uint32 = 0x00100000
	HeapVAddr          uint32 = 0x08000000
	HeapSize           uint32 = 0x00100000
	ScratchpadVAddrEnd uint32 = 0x10000000
	ScratchpadSize     uint32 = 0x00004000
)

// ThreadContext is the saved register file of one guest thread.
type ThreadContext struct {
	Regs  [13]uint32 // R0-R12
	SP    uint32
	LR    uint32
	PC    uint32
	CPSR  uint32
	FPU   [32]uint32
	FPSCR uint32
	FPEXC uint32

	// Mode tells the engine to resume the context rather than start it cold.
	Mode uint32
}

// Register indices accepted by CPU.Reg and CPU.SetReg beyond R0-R12.
const (
	RegSP = 13
	RegLR = 14
	RegPC = 15
)

// CPU is the guest instruction execution engine.
//
// The kernel treats it as a black box: it only swaps register files, reads the PC
// and charges ticks.
type CPU interface {
	SaveContext(ctx *ThreadContext)
	LoadContext(ctx *ThreadContext)
	GetPC() uint32
	Reg(i int) uint32
	SetReg(i int, v uint32)

	// AddTicks charges n cycles without executing guest code.
	AddTicks(n uint64)
	Ticks() uint64

	// Run executes guest code for up to budget cycles.
	Run(budget uint64)

	// PrepareReschedule makes Run return at the next instruction boundary.
	PrepareReschedule()
}

// Memory is the guest's 32-bit address space. Accesses are little-endian.
//
// Reads from unmapped addresses return zero, writes to them are dropped.
type Memory interface {
	Read8(addr uint32) uint8
	Read32(addr uint32) uint32
	Write8(addr uint32, v uint8)
	Write32(addr uint32, v uint32)
	IsValidAddress(addr uint32) bool
}

// Time provides a base tick stream.
//
// The tick duration is platform-defined (1ms on host).
type Time interface {
	Ticks() <-chan uint64
}

// HAL provides the only contact point between the kernel and the outside world.
type HAL interface {
	Logger() Logger
	CPU() CPU
	Memory() Memory
	Time() Time
}
