package hal

import "testing"

func TestHostMemoryUnmapped(t *testing.T) {
	m := NewHostMemory()
	if m.IsValidAddress(0x1000) {
		t.Fatal("IsValidAddress(unmapped) = true")
	}
	m.Write32(0x1000, 0xAABBCCDD)
	if got := m.Read32(0x1000); got != 0 {
		t.Fatalf("Read32(unmapped) = %#x, want 0", got)
	}
}

func TestHostMemoryLittleEndian(t *testing.T) {
	m := NewHostMemory()
	m.Map(HeapVAddr, HeapSize)

	m.Write32(HeapVAddr+4, 0x11223344)
	if got := m.Read8(HeapVAddr + 4); got != 0x44 {
		t.Fatalf("Read8() = %#x, want 0x44", got)
	}
	if got := m.Read32(HeapVAddr + 4); got != 0x11223344 {
		t.Fatalf("Read32() = %#x, want 0x11223344", got)
	}
}

func TestHostMemoryCrossPage(t *testing.T) {
	m := NewHostMemory()
	m.Map(0x2000, 2*pageSize)

	addr := uint32(0x2000 + pageSize - 2)
	m.Write32(addr, 0xCAFEBABE)
	if got := m.Read32(addr); got != 0xCAFEBABE {
		t.Fatalf("Read32(cross page) = %#x, want 0xCAFEBABE", got)
	}

	// Half the word lands past the mapping and is dropped.
	edge := uint32(0x2000 + 2*pageSize - 2)
	m.Write32(edge, 0xFFFFFFFF)
	if got := m.Read32(edge); got != 0x0000FFFF {
		t.Fatalf("Read32(edge) = %#x, want 0xFFFF", got)
	}
}

func TestHostMemoryMapKeepsContents(t *testing.T) {
	m := NewHostMemory()
	m.Map(HeapVAddr, pageSize)
	m.Write8(HeapVAddr, 7)
	m.Map(HeapVAddr, 2*pageSize)
	if got := m.Read8(HeapVAddr); got != 7 {
		t.Fatalf("Read8() after remap = %d, want 7", got)
	}
	m.Map(HeapVAddr, 0)
}
