package kernel

import "fmt"

// ArbitrationType selects the operation of ArbitrateAddress.
type ArbitrationType uint32

const (
	ArbitrationSignal ArbitrationType = iota
	ArbitrationWaitIfLessThan
	ArbitrationDecrementAndWaitIfLessThan
	ArbitrationWaitIfLessThanWithTimeout
	ArbitrationDecrementAndWaitIfLessThanWithTimeout
)

func (a ArbitrationType) String() string {
	switch a {
	case ArbitrationSignal:
		return "Signal"
	case ArbitrationWaitIfLessThan:
		return "WaitIfLessThan"
	case ArbitrationDecrementAndWaitIfLessThan:
		return "DecrementAndWaitIfLessThan"
	case ArbitrationWaitIfLessThanWithTimeout:
		return "WaitIfLessThanWithTimeout"
	case ArbitrationDecrementAndWaitIfLessThanWithTimeout:
		return "DecrementAndWaitIfLessThanWithTimeout"
	default:
		return fmt.Sprintf("ArbitrationType(%d)", uint32(a))
	}
}

// AddressArbiter has no state of its own. Waiters are tracked by the address they
// arbitrate on; the values live in guest memory.
type AddressArbiter struct {
	name string
}

func (k *Kernel) CreateAddressArbiter(name string) *AddressArbiter {
	return &AddressArbiter{name: name}
}

func (a *AddressArbiter) HandleType() HandleType { return HandleTypeAddressArbiter }
func (a *AddressArbiter) Name() string           { return a.name }

// ArbitrateAddress runs one arbitration operation through the arbiter behind h.
//
// Signal resumes value waiters on addr in priority order, or all of them if value is
// negative. The wait variants block the caller on addr while the signed word there is <=
// value; the decrement variants store the word minus one first. Only the WithTimeout
// variants use ns.
func (k *Kernel) ArbitrateAddress(h Handle, typ ArbitrationType, addr uint32, value int32, ns int64) ResultCode {
	if _, ok := Lookup[*AddressArbiter](k.handles, h); !ok {
		return ErrInvalidHandle
	}
	k.log.Tracef("ArbitrateAddress handle=0x%08X type=%s addr=0x%08X value=%d", uint32(h), typ, addr, value)

	switch typ {
	case ArbitrationSignal:
		if value < 0 {
			k.sched.ArbitrateAllThreads(addr)
			break
		}
		for i := int32(0); i < value; i++ {
			if k.sched.ArbitrateHighestPriorityThread(addr) == nil {
				break
			}
		}

	case ArbitrationWaitIfLessThan, ArbitrationWaitIfLessThanWithTimeout:
		if int32(k.mem.Read32(addr)) <= value {
			k.waitArbitration(addr, typ == ArbitrationWaitIfLessThanWithTimeout, ns)
		}

	case ArbitrationDecrementAndWaitIfLessThan, ArbitrationDecrementAndWaitIfLessThanWithTimeout:
		v := int32(k.mem.Read32(addr)) - 1
		k.mem.Write32(addr, uint32(v))
		if v <= value {
			k.waitArbitration(addr, typ == ArbitrationDecrementAndWaitIfLessThanWithTimeout, ns)
		}

	default:
		k.log.Errorf("ArbitrateAddress: unknown type=%d", uint32(typ))
		return ErrInvalidEnumValue
	}
	return ResultSuccess
}

func (k *Kernel) waitArbitration(addr uint32, timeout bool, ns int64) {
	t := k.caller()
	k.sched.WaitCurrentThreadArbitrateAddress(addr)
	if timeout {
		k.sched.WakeThreadAfterDelay(t, ns)
	}
}
