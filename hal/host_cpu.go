package hal

// HostCPU is a register file plus cycle counter standing in for an instruction engine.
//
// Run does not decode anything; it only burns the budget. Guest behaviour on host is driven
// by issuing system calls against the current register file.
type HostCPU struct {
	ctx        ThreadContext
	ticks      uint64
	reschedule bool
}

// NewHostCPU returns a CPU whose program counter starts at pc.
func NewHostCPU(pc uint32) *HostCPU {
	c := &HostCPU{}
	c.ctx.PC = pc
	return c
}

func (c *HostCPU) SaveContext(ctx *ThreadContext) { *ctx = c.ctx }
func (c *HostCPU) LoadContext(ctx *ThreadContext) { c.ctx = *ctx }
func (c *HostCPU) GetPC() uint32                  { return c.ctx.PC }

func (c *HostCPU) Reg(i int) uint32 {
	switch {
	case i >= 0 && i < len(c.ctx.Regs):
		return c.ctx.Regs[i]
	case i == RegSP:
		return c.ctx.SP
	case i == RegLR:
		return c.ctx.LR
	case i == RegPC:
		return c.ctx.PC
	default:
		return 0
	}
}

func (c *HostCPU) SetReg(i int, v uint32) {
	switch {
	case i >= 0 && i < len(c.ctx.Regs):
		c.ctx.Regs[i] = v
	case i == RegSP:
		c.ctx.SP = v
	case i == RegLR:
		c.ctx.LR = v
	case i == RegPC:
		c.ctx.PC = v
	}
}

func (c *HostCPU) AddTicks(n uint64) { c.ticks += n }
func (c *HostCPU) Ticks() uint64     { return c.ticks }

func (c *HostCPU) Run(budget uint64) {
	c.reschedule = false
	c.ticks += budget
}

func (c *HostCPU) PrepareReschedule() { c.reschedule = true }
