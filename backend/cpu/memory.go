package cpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/vecadd/backend"
)

// MemoryStats contains device memory usage statistics.
type MemoryStats struct {
	// BudgetBytes is the total memory budget in bytes (0 = unlimited).
	BudgetBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// BufferCount is the number of live buffers.
	BufferCount int

	// Allocations is the total number of allocations made.
	Allocations uint64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%d/%d bytes, %d buffers, %d allocations]",
		s.UsedBytes, s.BudgetBytes, s.BufferCount, s.Allocations)
}

// memoryTracker accounts buffer allocations against a device budget.
// It is the allocation-failure surface of the software device: exceeding
// the budget fails with ErrOutOfMemory, the same fatal condition a real
// device reports when it cannot back a buffer.
//
// memoryTracker is safe for concurrent use.
type memoryTracker struct {
	mu sync.Mutex

	budgetBytes uint64 // 0 means unlimited
	usedBytes   uint64
	bufferCount int
	allocations uint64
}

func newMemoryTracker(budgetBytes uint64) *memoryTracker {
	return &memoryTracker{budgetBytes: budgetBytes}
}

// reserve accounts an allocation of size bytes, failing if it would
// exceed the budget.
func (m *memoryTracker) reserve(size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budgetBytes != 0 && m.usedBytes+size > m.budgetBytes {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			backend.ErrOutOfMemory, size, m.usedBytes, m.budgetBytes)
	}
	m.usedBytes += size
	m.bufferCount++
	m.allocations++
	return nil
}

// release returns size bytes to the budget.
func (m *memoryTracker) release(size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size > m.usedBytes {
		size = m.usedBytes
	}
	m.usedBytes -= size
	if m.bufferCount > 0 {
		m.bufferCount--
	}
}

// stats returns a snapshot of the tracker state.
func (m *memoryTracker) stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MemoryStats{
		BudgetBytes: m.budgetBytes,
		UsedBytes:   m.usedBytes,
		BufferCount: m.bufferCount,
		Allocations: m.allocations,
	}
}
