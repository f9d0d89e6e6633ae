package claude

import (
	"fmt"

	"golang.org/x/exp/mmap"
)

// mappedFile is the single well-commented boundary around memory-mapped,
// read-only access to a session file, per spec section 9: "A language
// without a safe mapping abstraction should wrap the unsafe mapping call
// at a single well-commented boundary and expose only bounded-slice
// access upward." Every other component in this package reads session
// files exclusively through openMapped/slice/Close; none calls
// golang.org/x/exp/mmap directly.
type mappedFile struct {
	r    *mmap.ReaderAt
	size int64
}

// openMapped maps path read-only for the duration of the caller's scan.
// The caller owns the returned handle and must Close it; per spec
// section 5, the engine assumes no in-place mutation by external writers
// (append-only invariant) and a violation produces undefined parse
// output but never unsafe memory access, since every read here is a
// bounds-checked ReadAt into a fresh buffer, not a raw pointer slice.
func openMapped(path string) (*mappedFile, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap open %s: %w", path, err)
	}
	return &mappedFile{r: r, size: int64(r.Len())}, nil
}

// Size returns the mapped file's length in bytes.
func (m *mappedFile) Size() int64 { return m.size }

// Bytes returns the full mapped contents as a bounded, freshly-copied
// slice. Copying (rather than returning a view into the mapping) keeps
// the "bounded-slice access upward" boundary honest: nothing above this
// file ever holds a pointer that outlives Close.
func (m *mappedFile) Bytes() ([]byte, error) {
	return m.Slice(0, m.size)
}

// Slice returns a bounded, freshly-copied view of [start, end).
func (m *mappedFile) Slice(start, end int64) ([]byte, error) {
	if start < 0 || end > m.size || start > end {
		return nil, fmt.Errorf("mmap slice out of range [%d,%d) size=%d", start, end, m.size)
	}
	buf := make([]byte, end-start)
	if _, err := m.r.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("mmap read: %w", err)
	}
	return buf, nil
}

// Close releases the mapping.
func (m *mappedFile) Close() error {
	return m.r.Close()
}
