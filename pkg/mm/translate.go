package mm

import "errors"

// User-memory access errors.
var (
	ErrBadAddress = errors.New("address not mapped in user space")
)

// TranslatedByteBuffer resolves a logically contiguous user range into
// one or more physically contiguous chunks. The destination of a copy
// may straddle page boundaries, in which case adjacent virtual pages
// land in unrelated frames, so callers must walk the chunks rather
// than dereference the range in one step.
func TranslatedByteBuffer(ms *MemorySet, ptr VirtAddr, length int) ([][]byte, error) {
	if length < 0 {
		return nil, ErrBadAddress
	}
	var bufs [][]byte
	cur := ptr
	end := ptr + VirtAddr(length)
	for cur < end {
		vpn := cur.Floor()
		pte, ok := ms.Translate(vpn)
		if !ok || !pte.Valid() {
			return nil, ErrBadAddress
		}
		frame := ms.alloc.FrameBytes(pte.PPN())
		off := cur.PageOffset()
		chunkEnd := uintptr(PageSize)
		if pageEnd := (vpn + 1).Addr(); end < pageEnd {
			chunkEnd = off + uintptr(end-cur)
		}
		bufs = append(bufs, frame[off:chunkEnd])
		cur = (vpn + 1).Addr()
	}
	return bufs, nil
}

// CopyOut writes data into user memory at ptr, chunk by chunk through
// the page table.
func CopyOut(ms *MemorySet, ptr VirtAddr, data []byte) error {
	bufs, err := TranslatedByteBuffer(ms, ptr, len(data))
	if err != nil {
		return err
	}
	for _, buf := range bufs {
		copy(buf, data[:len(buf)])
		data = data[len(buf):]
	}
	return nil
}

// CopyIn reads length bytes of user memory starting at ptr.
func CopyIn(ms *MemorySet, ptr VirtAddr, length int) ([]byte, error) {
	bufs, err := TranslatedByteBuffer(ms, ptr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, length)
	for _, buf := range bufs {
		out = append(out, buf...)
	}
	return out, nil
}

// TranslatedStr reads a NUL-terminated string from user memory,
// following the mapping page by page.
func TranslatedStr(ms *MemorySet, ptr VirtAddr) (string, error) {
	var out []byte
	cur := ptr
	for {
		vpn := cur.Floor()
		pte, ok := ms.Translate(vpn)
		if !ok || !pte.Valid() {
			return "", ErrBadAddress
		}
		frame := ms.alloc.FrameBytes(pte.PPN())
		for off := cur.PageOffset(); off < PageSize; off++ {
			b := frame[off]
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
			cur++
		}
	}
}
