package wasm

import "encoding/binary"

// PageSize is the core's unit of memory growth, in bytes. spec.md §9
// leaves this an implementer's choice between the real WebAssembly page
// (65536) and a reduced size for a small embeddable core; we pin it at
// 4096, matching the original Rust runtime this spec distills and
// documenting, per spec.md, that this breaks interop with .wasm binaries
// that assume the real 64 KiB page for memory.grow/memory.size arithmetic.
const PageSize = 4096

// Memory is a module instance's linear memory: a byte vector whose length
// is always a multiple of PageSize and always within [min*PageSize,
// max*PageSize].
type Memory struct {
	Data     []byte
	MinPages uint32
	MaxPages uint32 // only meaningful when HasMax
	HasMax   bool
	Name     string // export name, empty if memory is not exported
}

// NewMemory allocates a Memory with MinPages pages of zeroed backing
// storage, per the MemoryBlueprint.
func NewMemory(bp *MemoryBlueprint) *Memory {
	m := &Memory{
		MinPages: bp.MinPages,
		MaxPages: bp.MaxPages,
		HasMax:   bp.HasMax,
		Name:     bp.ExportName,
		Data:     make([]byte, uint64(bp.MinPages)*PageSize),
	}
	return m
}

// Pages returns the current size of the memory in pages.
func (m *Memory) Pages() uint32 { return uint32(len(m.Data) / PageSize) }

// Grow adds delta pages, returning the previous page count and true, or
// (0, false) if doing so would exceed the declared maximum.
func (m *Memory) Grow(delta uint32) (uint32, bool) {
	prev := m.Pages()
	next := prev + delta
	if next < prev { // overflow
		return 0, false
	}
	if m.HasMax && next > m.MaxPages {
		return 0, false
	}
	m.Data = append(m.Data, make([]byte, uint64(delta)*PageSize)...)
	return prev, true
}

// inBounds reports whether the byte range [addr, addr+size) lies within
// the memory's current backing storage.
func (m *Memory) inBounds(addr uint32, size uint32) bool {
	end := uint64(addr) + uint64(size)
	return end <= uint64(len(m.Data))
}

// Slice returns the size bytes starting at addr, or false if out of
// bounds.
func (m *Memory) Slice(addr, size uint32) ([]byte, bool) {
	if !m.inBounds(addr, size) {
		return nil, false
	}
	return m.Data[addr : addr+size], true
}

// ReadUint32Le reads a little-endian uint32 at addr.
func (m *Memory) ReadUint32Le(addr uint32) (uint32, bool) {
	b, ok := m.Slice(addr, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// WriteUint32Le writes a little-endian uint32 at addr.
func (m *Memory) WriteUint32Le(addr uint32, v uint32) bool {
	b, ok := m.Slice(addr, 4)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint32(b, v)
	return true
}

// Write copies data into memory starting at addr.
func (m *Memory) Write(addr uint32, data []byte) bool {
	b, ok := m.Slice(addr, uint32(len(data)))
	if !ok {
		return false
	}
	copy(b, data)
	return true
}
