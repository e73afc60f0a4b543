package jit

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ExecutableMemory is a page of PROT_EXEC memory holding one compiled
// entry's machine code, allocated through golang.org/x/sys/unix instead
// of a raw syscall.Syscall6 trio.
type ExecutableMemory struct {
	data []byte
}

// AllocateExecutableMemory reserves size bytes of read/write/execute
// anonymous memory.
func AllocateExecutableMemory(size int) (*ExecutableMemory, error) {
	if size <= 0 {
		size = unix.Getpagesize()
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("jit: mmap executable memory: %w", err)
	}
	return &ExecutableMemory{data: data}, nil
}

// Write copies code into the reserved page starting at offset 0.
func (m *ExecutableMemory) Write(code []byte) error {
	if len(code) > len(m.data) {
		return fmt.Errorf("jit: code (%d bytes) exceeds allocated page (%d bytes)", len(code), len(m.data))
	}
	copy(m.data, code)
	return nil
}

// Bytes returns the backing page, for inspection in tests.
func (m *ExecutableMemory) Bytes() []byte { return m.data }

// Addr returns the page's base address as a uintptr, for baking into
// fixups and for the best-effort raw-call path.
func (m *ExecutableMemory) Addr() uintptr {
	if len(m.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.data[0]))
}

// Free releases the page. Callers must not use m after calling Free.
func (m *ExecutableMemory) Free() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
