package vm

import (
	"rvkernel/internal/kerr"
	"rvkernel/internal/spinlock"
)

// CopyOut copies src into the address space at dstva, resolving any
// copy-on-write page it lands on along the way (vmcopyout). It is the only
// copy direction that can legitimately hit a COW page, since the kernel is
// writing on the user's behalf (e.g. exec laying down argv).
func (s *Space) CopyOut(g *spinlock.Gate, dstva VAddr, src []byte) kerr.Err_t {
	for len(src) > 0 {
		va0 := PageRoundDown(dstva)
		if va0 >= MaxVA {
			return kerr.NotFound
		}
		table, idx, ok := walk(s.fm, g, s.Root, va0, false)
		if !ok {
			return kerr.NotFound
		}
		pte := ptePtr(s.fm, table, idx)
		if !pte.Valid() {
			return kerr.NotFound
		}
		if pte&PteU == 0 {
			return kerr.PermissionDenied
		}
		if pte&PteCow != 0 {
			if err := s.copyOnWrite(g, table, idx); err != kerr.OK {
				return err
			}
		}

		pa, ok := walkAddr(s.fm, g, s.Root, va0)
		if !ok {
			return kerr.NotFound
		}
		off := int(dstva - va0)
		n := PageSize - off
		if n > len(src) {
			n = len(src)
		}
		copy(s.fm.Bytes(pa)[off:off+n], src[:n])

		src = src[n:]
		dstva = va0 + PageSize
	}
	return kerr.OK
}

// CopyIn copies len(dst) bytes from the address space starting at srcva
// into dst (vmcopyin).
func (s *Space) CopyIn(g *spinlock.Gate, dst []byte, srcva VAddr) kerr.Err_t {
	for len(dst) > 0 {
		va0 := PageRoundDown(srcva)
		pa, ok := walkAddr(s.fm, g, s.Root, va0)
		if !ok {
			return kerr.NotFound
		}
		off := int(srcva - va0)
		n := PageSize - off
		if n > len(dst) {
			n = len(dst)
		}
		copy(dst[:n], s.fm.Bytes(pa)[off:off+n])

		dst = dst[n:]
		srcva = va0 + PageSize
	}
	return kerr.OK
}

// CopyInString copies a NUL-terminated string from the address space
// starting at srcva, up to max bytes, returning the bytes copied
// (excluding the terminator) and kerr.OK, or kerr.NotFound if max bytes
// were exhausted without finding a terminator or a mapping was missing
// (vmcopyinstr).
func (s *Space) CopyInString(g *spinlock.Gate, srcva VAddr, max int) ([]byte, kerr.Err_t) {
	dst := make([]byte, 0, max)
	for len(dst) < max {
		va0 := PageRoundDown(srcva)
		pa, ok := walkAddr(s.fm, g, s.Root, va0)
		if !ok {
			return nil, kerr.NotFound
		}
		off := int(srcva - va0)
		page := s.fm.Bytes(pa)[off:]
		n := PageSize - off
		if n > max-len(dst) {
			n = max - len(dst)
		}
		for i := 0; i < n; i++ {
			if page[i] == 0 {
				return dst, kerr.OK
			}
			dst = append(dst, page[i])
		}
		srcva = va0 + PageSize
	}
	return nil, kerr.NotFound
}
