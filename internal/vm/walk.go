package vm

import (
	"encoding/binary"

	"rvkernel/internal/frame"
	"rvkernel/internal/klog"
	"rvkernel/internal/spinlock"
)

// PageSize is the Sv39 base page size, the unit walk/mappages/unmap all
// operate in.
const PageSize = frame.PageSize

// pxBits is the width of one page-table index field.
const pxBits = 9

// pxMask selects one 9-bit index field out of a virtual address.
const pxMask = 1<<pxBits - 1

// MaxVA is one past the largest virtual address this port accepts —
// 2^(9+9+9+12-1), matching the original's choice to keep the top VPN bit
// zero so it can never be confused with a sign-extended kernel address.
const MaxVA = VAddr(1) << (pxBits*3 + 12 - 1)

// pageIndex extracts the 9-bit page-table index for the given level (2, 1,
// or 0) out of a virtual address.
func pageIndex(va VAddr, level int) int {
	return int((uintptr(va) >> uint(12+pxBits*level)) & pxMask)
}

// PageRoundDown rounds a virtual address down to the containing page.
func PageRoundDown(va VAddr) VAddr { return va &^ (PageSize - 1) }

// PageRoundUp rounds a virtual address up to the next page boundary.
func PageRoundUp(va VAddr) VAddr { return (va + PageSize - 1) &^ (PageSize - 1) }

func ptePtr(fm *frame.Manager, table frame.Frame, idx int) PTE {
	b := fm.Bytes(table)
	return PTE(binary.LittleEndian.Uint64(b[idx*8 : idx*8+8]))
}

func setPte(fm *frame.Manager, table frame.Frame, idx int, v PTE) {
	b := fm.Bytes(table)
	binary.LittleEndian.PutUint64(b[idx*8:idx*8+8], uint64(v))
}

// walk returns the table frame and index of the leaf PTE for va within the
// page table rooted at root, creating intermediate page-table pages along
// the way when alloc is true. It reports false if no leaf exists and alloc
// is false, or if a needed page-table page could not be allocated.
//
// Grounded directly in vmwalk's three-level Sv39 descent
// (original_source/kernel/memory/vm.c); returning a (table, index) pair
// instead of a raw pte_t* is the REDESIGN FLAGS-directed typed-index
// analogue used throughout this port.
func walk(fm *frame.Manager, g *spinlock.Gate, root frame.Frame, va VAddr, alloc bool) (frame.Frame, int, bool) {
	if va >= MaxVA {
		klog.Fatal("vm: walk: address out of range")
	}
	table := root
	for level := 2; level > 0; level-- {
		idx := pageIndex(va, level)
		pte := ptePtr(fm, table, idx)
		if pte.Valid() {
			table = pte2pa(pte)
			continue
		}
		if !alloc {
			return 0, 0, false
		}
		next, ok := fm.Alloc(g)
		if !ok {
			return 0, 0, false
		}
		setPte(fm, table, idx, pa2pte(next)|PteV)
		table = next
	}
	return table, pageIndex(va, 0), true
}

// walkAddr looks up the physical frame mapped to va, honoring only
// user-accessible, valid mappings, mirroring vmwalkaddr exactly (including
// its restriction to lookups a user process itself could perform).
func walkAddr(fm *frame.Manager, g *spinlock.Gate, root frame.Frame, va VAddr) (frame.Frame, bool) {
	if va >= MaxVA {
		return 0, false
	}
	table, idx, ok := walk(fm, g, root, va, false)
	if !ok {
		return 0, false
	}
	pte := ptePtr(fm, table, idx)
	if !pte.Valid() || pte&PteU == 0 {
		return 0, false
	}
	return pte2pa(pte), true
}
