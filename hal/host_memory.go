package hal

import "encoding/binary"

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// HostMemory is a sparse, page-granular guest address space.
type HostMemory struct {
	pages map[uint32]*[pageSize]byte
}

func NewHostMemory() *HostMemory {
	return &HostMemory{pages: make(map[uint32]*[pageSize]byte)}
}

// Map backs [addr, addr+size) with zeroed pages. Already mapped pages keep their contents.
func (m *HostMemory) Map(addr, size uint32) {
	if size == 0 {
		return
	}
	first := addr >> pageBits
	last := (uint64(addr) + uint64(size) - 1) >> pageBits
	for p := uint64(first); p <= last; p++ {
		if _, ok := m.pages[uint32(p)]; !ok {
			m.pages[uint32(p)] = new([pageSize]byte)
		}
	}
}

func (m *HostMemory) IsValidAddress(addr uint32) bool {
	_, ok := m.pages[addr>>pageBits]
	return ok
}

func (m *HostMemory) Read8(addr uint32) uint8 {
	p, ok := m.pages[addr>>pageBits]
	if !ok {
		return 0
	}
	return p[addr&pageMask]
}

func (m *HostMemory) Write8(addr uint32, v uint8) {
	p, ok := m.pages[addr>>pageBits]
	if !ok {
		return
	}
	p[addr&pageMask] = v
}

func (m *HostMemory) Read32(addr uint32) uint32 {
	off := addr & pageMask
	if off <= pageSize-4 {
		p, ok := m.pages[addr>>pageBits]
		if !ok {
			return 0
		}
		return binary.LittleEndian.Uint32(p[off : off+4])
	}
	var b [4]byte
	for i := range b {
		b[i] = m.Read8(addr + uint32(i))
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (m *HostMemory) Write32(addr uint32, v uint32) {
	off := addr & pageMask
	if off <= pageSize-4 {
		p, ok := m.pages[addr>>pageBits]
		if !ok {
			return
		}
		binary.LittleEndian.PutUint32(p[off:off+4], v)
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	for i := range b {
		m.Write8(addr+uint32(i), b[i])
	}
}
