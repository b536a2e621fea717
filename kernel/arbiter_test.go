package kernel

import (
	"slices"
	"testing"

	"horizon/hal"
)

func waitOnAddress(t *testing.T, f *fixture, h Handle, th *Thread, addr uint32) {
	t.Helper()
	f.runAs(t, th)
	if res := f.k.ArbitrateAddress(h, ArbitrationWaitIfLessThan, addr, 0, 0); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress(wait) = %v, want success", res)
	}
	expectStatus(t, f.s, th, StatusWaitArb)
}

func TestArbitrateHighestPriorityTieBreak(t *testing.T) {
	f := newFixture(t)
	h := f.handle(t, f.k.CreateAddressArbiter("arb"))
	const addr = hal.HeapVAddr
	f.mem.Write32(addr, 0)

	a := f.spawn(t, "a", 10)
	b := f.spawn(t, "b", 5)
	c := f.spawn(t, "c", 5)
	d := f.spawn(t, "d", 20)
	for _, th := range []*Thread{a, b, c, d} {
		waitOnAddress(t, f, h, th, addr)
	}
	checkInvariants(t, f.s)

	for _, want := range []*Thread{b, c, a, d} {
		got := f.s.ArbitrateHighestPriorityThread(addr)
		if got != want {
			t.Fatalf("ArbitrateHighestPriorityThread() = %v, want %s", got, want)
		}
		expectStatus(t, f.s, want, StatusReady)
	}
	if got := f.s.ArbitrateHighestPriorityThread(addr); got != nil {
		t.Fatalf("ArbitrateHighestPriorityThread() on empty address = %s, want nil", got)
	}
	checkInvariants(t, f.s)
}

func TestArbitrateSignalAllInRegistrationOrder(t *testing.T) {
	f := newFixture(t)
	h := f.handle(t, f.k.CreateAddressArbiter("arb"))
	const addr = hal.HeapVAddr + 4
	f.mem.Write32(addr, 0)

	b := f.spawn(t, "b", 20)
	c := f.spawn(t, "c", 20)
	sig := f.spawn(t, "sig", 30)
	waitOnAddress(t, f, h, b, addr)
	waitOnAddress(t, f, h, c, addr)
	if f.core.Current() != sig {
		t.Fatalf("Current() = %v, want %s", f.core.Current(), sig)
	}

	if res := f.k.ArbitrateAddress(h, ArbitrationSignal, addr, -1, 0); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress(signal) = %v, want success", res)
	}

	expectStatus(t, f.s, b, StatusReady)
	expectStatus(t, f.s, c, StatusReady)
	if ids := f.bucketIDs(20); !slices.Equal(ids, []uint32{b.ID(), c.ID()}) {
		t.Fatalf("bucket 20 = %v, want [%d %d]", ids, b.ID(), c.ID())
	}
	f.s.ReschedulePending()
	if f.core.Current() != b {
		t.Fatalf("Current() = %v, want %s", f.core.Current(), b)
	}
	checkInvariants(t, f.s)
}

func TestArbitrateSignalCount(t *testing.T) {
	f := newFixture(t)
	h := f.handle(t, f.k.CreateAddressArbiter("arb"))
	const addr = hal.HeapVAddr + 8

	x := f.spawn(t, "x", 30)
	y := f.spawn(t, "y", 10)
	z := f.spawn(t, "z", 20)
	sig := f.spawn(t, "sig", 40)
	for _, th := range []*Thread{x, y, z} {
		waitOnAddress(t, f, h, th, addr)
	}
	f.runAs(t, sig)

	if res := f.k.ArbitrateAddress(h, ArbitrationSignal, addr, 2, 0); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress(signal 2) = %v, want success", res)
	}
	expectStatus(t, f.s, y, StatusReady)
	expectStatus(t, f.s, z, StatusReady)
	expectStatus(t, f.s, x, StatusWaitArb)

	// Signalling more waiters than exist is not an error.
	if res := f.k.ArbitrateAddress(h, ArbitrationSignal, addr, 5, 0); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress(signal 5) = %v, want success", res)
	}
	expectStatus(t, f.s, x, StatusReady)
	checkInvariants(t, f.s)
}

func TestArbitrateWaitNotTaken(t *testing.T) {
	f := newFixture(t)
	h := f.handle(t, f.k.CreateAddressArbiter("arb"))
	const addr = hal.HeapVAddr
	f.mem.Write32(addr, 5)
	a := f.spawn(t, "a", 10)
	f.runAs(t, a)

	if res := f.k.ArbitrateAddress(h, ArbitrationWaitIfLessThan, addr, 4, 0); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress() = %v, want success", res)
	}
	expectStatus(t, f.s, a, StatusRunning)

	if res := f.k.ArbitrateAddress(h, ArbitrationDecrementAndWaitIfLessThan, addr, 0, 0); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress(decrement) = %v, want success", res)
	}
	if got := f.mem.Read32(addr); got != 4 {
		t.Fatalf("memory = %d, want 4", got)
	}
	expectStatus(t, f.s, a, StatusRunning)
}

func TestArbitrateDecrementAndWait(t *testing.T) {
	f := newFixture(t)
	h := f.handle(t, f.k.CreateAddressArbiter("arb"))
	const addr = hal.HeapVAddr
	f.mem.Write32(addr, 1)
	a := f.spawn(t, "a", 10)
	f.runAs(t, a)

	if res := f.k.ArbitrateAddress(h, ArbitrationDecrementAndWaitIfLessThan, addr, 0, 0); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress() = %v, want success", res)
	}
	if got := f.mem.Read32(addr); got != 0 {
		t.Fatalf("memory = %d, want 0", got)
	}
	expectStatus(t, f.s, a, StatusWaitArb)
	if got, ok := f.s.WaitAddress(a); !ok || got != addr {
		t.Fatalf("WaitAddress() = %08x, %t, want %08x, true", got, ok, addr)
	}
}

func TestArbitrateWaitWithTimeout(t *testing.T) {
	f := newFixture(t)
	h := f.handle(t, f.k.CreateAddressArbiter("arb"))
	const addr = hal.HeapVAddr
	f.mem.Write32(addr, 0xFFFF_FFFF) // -1
	a := f.spawn(t, "a", 10)
	f.runAs(t, a)

	if res := f.k.ArbitrateAddress(h, ArbitrationWaitIfLessThanWithTimeout, addr, 0, 1000); res != ResultSuccess {
		t.Fatalf("ArbitrateAddress() = %v, want success", res)
	}
	expectStatus(t, f.s, a, StatusWaitArb)

	f.tq.Advance(1000)
	expectStatus(t, f.s, a, StatusReady)
	if got := ResultCode(a.Context.Regs[0]); got != ResultTimeout {
		t.Fatalf("r0 = %v, want %v", got, ResultTimeout)
	}
	if _, ok := f.s.WaitAddress(a); ok {
		t.Fatal("WaitAddress() still set after resume")
	}
}

func TestArbitrateAddressErrors(t *testing.T) {
	f := newFixture(t)
	h := f.handle(t, f.k.CreateAddressArbiter("arb"))
	ev, _ := f.k.CreateEvent(ResetOneShot, "ev")
	hev := f.handle(t, ev)
	const addr = hal.HeapVAddr
	f.mem.Write32(addr, 3)
	a := f.spawn(t, "a", 10)
	f.runAs(t, a)

	if res := f.k.ArbitrateAddress(InvalidHandle, ArbitrationDecrementAndWaitIfLessThan, addr, 10, 0); res != ErrInvalidHandle {
		t.Fatalf("ArbitrateAddress(invalid) = %v, want %v", res, ErrInvalidHandle)
	}
	if res := f.k.ArbitrateAddress(hev, ArbitrationDecrementAndWaitIfLessThan, addr, 10, 0); res != ErrInvalidHandle {
		t.Fatalf("ArbitrateAddress(event) = %v, want %v", res, ErrInvalidHandle)
	}
	if res := f.k.ArbitrateAddress(h, ArbitrationType(9), addr, 10, 0); res != ErrInvalidEnumValue {
		t.Fatalf("ArbitrateAddress(type 9) = %v, want %v", res, ErrInvalidEnumValue)
	}
	if !f.out.contains("unknown type=9") {
		t.Fatalf("missing error line: %q", f.out.lines)
	}
	if got := f.mem.Read32(addr); got != 3 {
		t.Fatalf("memory = %d, want 3", got)
	}
	expectStatus(t, f.s, a, StatusRunning)
}
