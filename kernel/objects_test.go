package kernel

import (
	"slices"
	"testing"
)

func TestMutexHandoff(t *testing.T) {
	f := newFixture(t)
	a := f.spawn(t, "a", 10)
	b := f.spawn(t, "b", 20)
	f.runAs(t, a)
	m := f.k.CreateMutex(true, "m")
	hm := f.handle(t, m)
	if m.Holder() != a || m.LockCount() != 1 {
		t.Fatalf("holder=%v count=%d, want a 1", m.Holder(), m.LockCount())
	}

	f.runAs(t, b)
	if res := f.k.WaitSynchronization1(hm, -1); res != ResultInvalid {
		t.Fatalf("WaitSynchronization1(mutex) = %v, want deferred", res)
	}
	if f.core.Current() != a {
		t.Fatalf("Current() = %v, want %s", f.core.Current(), a)
	}

	if res := m.Release(b); res != ErrNotAuthorized {
		t.Fatalf("Release(non-owner) = %v, want %v", res, ErrNotAuthorized)
	}
	if res := m.Release(a); res != ResultSuccess {
		t.Fatalf("Release(owner) = %v, want success", res)
	}

	expectStatus(t, f.s, b, StatusReady)
	if m.Holder() != b || m.LockCount() != 1 {
		t.Fatalf("holder=%v count=%d, want b 1", m.Holder(), m.LockCount())
	}
	if !slices.Contains(b.HeldMutexes(), m) || len(a.HeldMutexes()) != 0 {
		t.Fatal("held mutex lists not updated")
	}
	if got := ResultCode(b.Context.Regs[0]); got != ResultSuccess {
		t.Fatalf("b r0 = %v, want success", got)
	}
	checkInvariants(t, f.s)
}

func TestMutexRecursive(t *testing.T) {
	f := newFixture(t)
	a := f.spawn(t, "a", 10)
	f.runAs(t, a)
	m := f.k.CreateMutex(false, "m")
	h := f.handle(t, m)

	for i := 0; i < 2; i++ {
		if res := f.k.WaitSynchronization1(h, -1); res != ResultSuccess {
			t.Fatalf("WaitSynchronization1() #%d = %v, want success", i, res)
		}
	}
	if m.LockCount() != 2 || len(a.HeldMutexes()) != 1 {
		t.Fatalf("count=%d held=%d, want 2 1", m.LockCount(), len(a.HeldMutexes()))
	}
	m.Release(a)
	if m.Holder() != a {
		t.Fatal("released after first unlock")
	}
	m.Release(a)
	if m.Holder() != nil || len(a.HeldMutexes()) != 0 {
		t.Fatal("still held after last unlock")
	}
	if res := m.Release(a); res != ErrNotAuthorized {
		t.Fatalf("Release(unlocked) = %v, want %v", res, ErrNotAuthorized)
	}
}

func TestExitReleasesMutexes(t *testing.T) {
	f := newFixture(t)
	a := f.spawn(t, "a", 10)
	b := f.spawn(t, "b", 20)
	f.runAs(t, a)
	m := f.k.CreateMutex(true, "m")
	hm := f.handle(t, m)
	f.runAs(t, b)
	f.k.WaitSynchronization1(hm, -1)

	f.s.ExitCurrentThread()

	expectStatus(t, f.s, a, StatusDead)
	if m.Holder() != b || len(a.HeldMutexes()) != 0 {
		t.Fatalf("holder = %v, want %s", m.Holder(), b)
	}
	if f.core.Current() != b {
		t.Fatalf("Current() = %v, want %s", f.core.Current(), b)
	}
	checkInvariants(t, f.s)
}

func TestSemaphore(t *testing.T) {
	f := newFixture(t)
	if _, res := f.k.CreateSemaphore(3, 2, "bad"); res != ErrInvalidCombination {
		t.Fatalf("CreateSemaphore(3, 2) = %v, want %v", res, ErrInvalidCombination)
	}
	if _, res := f.k.CreateSemaphore(-1, 2, "bad"); res != ErrInvalidCombination {
		t.Fatalf("CreateSemaphore(-1, 2) = %v, want %v", res, ErrInvalidCombination)
	}

	a := f.spawn(t, "a", 10)
	sem, _ := f.k.CreateSemaphore(0, 2, "sem")
	h := f.handle(t, sem)
	f.runAs(t, a)
	if res := f.k.WaitSynchronization1(h, -1); res != ResultInvalid {
		t.Fatalf("WaitSynchronization1(empty) = %v, want deferred", res)
	}

	prev, res := sem.Release(1)
	if res != ResultSuccess || prev != 0 {
		t.Fatalf("Release(1) = %d, %v, want 0, success", prev, res)
	}
	expectStatus(t, f.s, a, StatusReady)
	if sem.Available() != 0 {
		t.Fatalf("Available() = %d, want 0", sem.Available())
	}

	if _, res := sem.Release(3); res != ErrOutOfRangeKernel {
		t.Fatalf("Release(3) = %v, want %v", res, ErrOutOfRangeKernel)
	}
	if prev, _ := sem.Release(2); prev != 0 || sem.Available() != 2 {
		t.Fatalf("Release(2) prev=%d available=%d, want 0 2", prev, sem.Available())
	}
}

func TestEventResetTypes(t *testing.T) {
	f := newFixture(t)
	a := f.spawn(t, "a", 10)
	b := f.spawn(t, "b", 20)

	pulse, _ := f.k.CreateEvent(ResetPulse, "pulse")
	hp := f.handle(t, pulse)
	f.runAs(t, a)
	f.k.WaitSynchronization1(hp, -1)
	f.runAs(t, b)
	f.k.WaitSynchronization1(hp, -1)

	pulse.Signal()
	expectStatus(t, f.s, a, StatusReady)
	expectStatus(t, f.s, b, StatusReady)
	if pulse.Signaled() {
		t.Fatal("pulse event still signaled")
	}

	oneshot, _ := f.k.CreateEvent(ResetOneShot, "oneshot")
	ho := f.handle(t, oneshot)
	f.s.ReschedulePending()
	f.runAs(t, a)
	f.k.WaitSynchronization1(ho, -1)
	f.runAs(t, b)
	f.k.WaitSynchronization1(ho, -1)

	oneshot.Signal()
	expectStatus(t, f.s, a, StatusReady)
	expectStatus(t, f.s, b, StatusWaitSync)
	if oneshot.Signaled() {
		t.Fatal("one-shot event still signaled")
	}
	checkInvariants(t, f.s)

	if _, res := f.k.CreateEvent(ResetType(7), "bad"); res != ErrInvalidEnumValue {
		t.Fatalf("CreateEvent(7) = %v, want %v", res, ErrInvalidEnumValue)
	}
}

func TestEventClear(t *testing.T) {
	f := newFixture(t)
	ev, _ := f.k.CreateEvent(ResetSticky, "ev")
	ev.Signal()
	ev.Clear()
	if ev.Signaled() || !ev.ShouldWait(nil) {
		t.Fatal("event signaled after Clear")
	}
}

func TestTimerPeriodic(t *testing.T) {
	f := newFixture(t)
	tm, _ := f.k.CreateTimer(ResetSticky, "tm")

	if res := tm.Set(1000, 500); res != ResultSuccess {
		t.Fatalf("Set() = %v, want success", res)
	}
	f.tq.Advance(999)
	if tm.Signaled() {
		t.Fatal("signaled before initial delay")
	}
	f.tq.Advance(1000)
	if !tm.Signaled() {
		t.Fatal("not signaled at initial delay")
	}
	tm.Clear()
	f.tq.Advance(1500)
	if !tm.Signaled() {
		t.Fatal("not signaled after one interval")
	}

	tm.Cancel()
	tm.Clear()
	f.tq.Advance(5000)
	if tm.Signaled() {
		t.Fatal("signaled after Cancel")
	}
	if res := tm.Set(-1, 0); res != ErrOutOfRange {
		t.Fatalf("Set(-1) = %v, want %v", res, ErrOutOfRange)
	}
}

func TestTimerZeroInitialSignalsNow(t *testing.T) {
	f := newFixture(t)
	tm, _ := f.k.CreateTimer(ResetSticky, "tm")
	tm.Set(0, 0)
	if !tm.Signaled() {
		t.Fatal("Set(0, 0) did not signal")
	}
	if f.tq.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", f.tq.Pending())
	}
}

func TestTimerWakesWaiter(t *testing.T) {
	f := newFixture(t)
	a := f.spawn(t, "a", 10)
	tm, _ := f.k.CreateTimer(ResetOneShot, "tm")
	h := f.handle(t, tm)
	f.runAs(t, a)

	f.k.WaitSynchronization1(h, -1)
	tm.Set(2000, 0)
	f.tq.Advance(2000)

	expectStatus(t, f.s, a, StatusReady)
	if tm.Signaled() {
		t.Fatal("one-shot timer not consumed by waiter")
	}
	if got := ResultCode(a.Context.Regs[0]); got != ResultSuccess {
		t.Fatalf("r0 = %v, want success", got)
	}
}

func TestCloseHandleCancelsTimer(t *testing.T) {
	f := newFixture(t)
	tm, _ := f.k.CreateTimer(ResetOneShot, "tm")
	h := f.handle(t, tm)
	dup, res := f.k.DuplicateHandle(h)
	if res != ResultSuccess {
		t.Fatalf("DuplicateHandle() = %v, want success", res)
	}
	tm.Set(1000, 0)

	if res := f.k.CloseHandle(h); res != ResultSuccess {
		t.Fatalf("CloseHandle() = %v, want success", res)
	}
	if f.tq.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 while a handle remains", f.tq.Pending())
	}
	f.k.CloseHandle(dup)
	if f.tq.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", f.tq.Pending())
	}
	if res := f.k.CloseHandle(dup); res != ErrInvalidHandle {
		t.Fatalf("CloseHandle(closed) = %v, want %v", res, ErrInvalidHandle)
	}
}

func TestClosedTimerStillWakesWaiter(t *testing.T) {
	f := newFixture(t)
	a := f.spawn(t, "a", 10)
	tm, _ := f.k.CreateTimer(ResetOneShot, "tm")
	h := f.handle(t, tm)
	f.runAs(t, a)

	tm.Set(2000, 500)
	if res := f.k.WaitSynchronization1(h, -1); res != ResultInvalid {
		t.Fatalf("WaitSynchronization1() = %v, want deferred", res)
	}
	if res := f.k.CloseHandle(h); res != ResultSuccess {
		t.Fatalf("CloseHandle() = %v, want success", res)
	}
	if f.tq.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 while a thread waits", f.tq.Pending())
	}

	f.tq.Advance(5000)
	expectStatus(t, f.s, a, StatusReady)
	if got := ResultCode(a.Context.Regs[0]); got != ResultSuccess {
		t.Fatalf("r0 = %v, want success", got)
	}
	if _, ok := f.k.timers[tm.id]; ok {
		t.Fatal("closed timer still registered after its last waiter left")
	}
	if f.tq.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", f.tq.Pending())
	}
}

func TestClosedTimerForgottenWhenWaiterTimesOut(t *testing.T) {
	f := newFixture(t)
	a := f.spawn(t, "a", 10)
	tm, _ := f.k.CreateTimer(ResetOneShot, "tm")
	h := f.handle(t, tm)
	f.runAs(t, a)

	f.k.WaitSynchronization1(h, 1000)
	f.k.CloseHandle(h)
	if _, ok := f.k.timers[tm.id]; !ok {
		t.Fatal("timer forgotten while a thread waits on it")
	}

	f.tq.Advance(1000)
	expectStatus(t, f.s, a, StatusReady)
	if got := ResultCode(a.Context.Regs[0]); got != ResultTimeout {
		t.Fatalf("r0 = %v, want timeout", got)
	}
	if _, ok := f.k.timers[tm.id]; ok {
		t.Fatal("closed timer still registered after its waiter timed out")
	}
}
