package kernel

// Handle is an opaque process-wide reference to a kernel object.
//
// Layout: slot in bits 0-14, generation in bits 15-31. Generation 0 is never issued, so
// the zero Handle is always invalid; the all-ones generation is reserved for pseudo-handles.
type Handle uint32

const (
	InvalidHandle Handle = 0

	// CurrentThread is a pseudo-handle resolving to the calling thread.
	CurrentThread Handle = 0xFFFF8000
	// CurrentProcess is a pseudo-handle for the calling process.
	CurrentProcess Handle = 0xFFFF8001
)

const (
	handleSlotBits  = 15
	handleSlotMask  = 1<<handleSlotBits - 1
	maxHandleSlots  = 1 << handleSlotBits
	maxGeneration   = 1<<(32-handleSlotBits) - 2 // the top generation is the pseudo-handle range
	firstGeneration = 1
)

func (h Handle) slot() int          { return int(h & handleSlotMask) }
func (h Handle) generation() uint32 { return uint32(h) >> handleSlotBits }

// HandleTable maps handles to objects. Closing a handle drops only the table's reference;
// the object stays alive while waiter lists or the thread registry still hold it.
type HandleTable struct {
	objects     []Object
	generations []uint32
	free        []int

	nextGeneration uint32
	current        func() *Thread
}

func newHandleTable(size int, current func() *Thread) *HandleTable {
	t := &HandleTable{current: current}
	t.init(size)
	return t
}

func (t *HandleTable) init(size int) {
	t.objects = make([]Object, size)
	t.generations = make([]uint32, size)
	t.free = make([]int, 0, size)
	for i := size - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
	t.nextGeneration = firstGeneration
}

// Create inserts obj and returns a fresh handle for it.
func (t *HandleTable) Create(obj Object) (Handle, ResultCode) {
	assertf(obj != nil, "handle table: create with nil object")
	if len(t.free) == 0 {
		return InvalidHandle, ErrOutOfHandles
	}
	slot := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	gen := t.nextGeneration
	t.nextGeneration++
	if t.nextGeneration > maxGeneration {
		t.nextGeneration = firstGeneration
	}

	t.objects[slot] = obj
	t.generations[slot] = gen
	return Handle(gen<<handleSlotBits | uint32(slot)), ResultSuccess
}

// Duplicate returns a new handle to the object h refers to.
func (t *HandleTable) Duplicate(h Handle) (Handle, ResultCode) {
	obj := t.Get(h)
	if obj == nil {
		return InvalidHandle, ErrInvalidHandle
	}
	return t.Create(obj)
}

// Close releases h. Pseudo-handles cannot be closed.
func (t *HandleTable) Close(h Handle) ResultCode {
	if !t.IsValid(h) {
		return ErrInvalidHandle
	}
	slot := h.slot()
	t.objects[slot] = nil
	t.generations[slot] = 0
	t.free = append(t.free, slot)
	return ResultSuccess
}

// IsValid reports whether h names a live table entry.
func (t *HandleTable) IsValid(h Handle) bool {
	slot := h.slot()
	if slot >= len(t.objects) {
		return false
	}
	return t.objects[slot] != nil && t.generations[slot] == h.generation()
}

// Get resolves h, including the CurrentThread pseudo-handle. It returns nil for invalid
// handles.
func (t *HandleTable) Get(h Handle) Object {
	switch h {
	case CurrentThread:
		if t.current == nil {
			return nil
		}
		if cur := t.current(); cur != nil {
			return cur
		}
		return nil
	case CurrentProcess:
		return nil
	}
	if !t.IsValid(h) {
		return nil
	}
	return t.objects[h.slot()]
}

// GetWaitObject resolves h to an object threads can wait on.
func (t *HandleTable) GetWaitObject(h Handle) WaitObject {
	wo, _ := t.Get(h).(WaitObject)
	return wo
}

// Lookup resolves h to an object of type T.
func Lookup[T Object](t *HandleTable, h Handle) (T, bool) {
	obj, ok := t.Get(h).(T)
	return obj, ok
}

// Holds reports whether any live handle refers to obj.
func (t *HandleTable) Holds(obj Object) bool {
	for _, o := range t.objects {
		if o == obj {
			return true
		}
	}
	return false
}

// Count returns the number of live handles.
func (t *HandleTable) Count() int {
	return len(t.objects) - len(t.free)
}

// Clear closes every handle.
func (t *HandleTable) Clear() {
	t.init(len(t.objects))
}
