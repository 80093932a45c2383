package buddy

// noBlock is the sentinel "no block" index, the arena-relative analogue of
// a nil list-node pointer.
const noBlock = ^uint32(0)

// freelist is an intrusive doubly linked list of same-size-class blocks,
// but — per REDESIGN FLAGS — the links are arena-relative block indices
// rather than untyped pointers cast from the blocks themselves. next/prev
// are sized to NBLK(k) and addressed by block index, exactly mirroring
// where the original stored its link pointers (inside the free bytes of
// each block), just typed and bounds-checked instead of pointer-cast.
type freelist struct {
	head uint32
	next []uint32
	prev []uint32
}

func newFreelist(nblk int) *freelist {
	fl := &freelist{
		head: noBlock,
		next: make([]uint32, nblk),
		prev: make([]uint32, nblk),
	}
	for i := range fl.next {
		fl.next[i] = noBlock
		fl.prev[i] = noBlock
	}
	return fl
}

func (fl *freelist) empty() bool { return fl.head == noBlock }

// len counts the list's members by walking it; diagnostic-only (Report),
// never called from the allocation/free hot path.
func (fl *freelist) len() int {
	n := 0
	for i := fl.head; i != noBlock; i = fl.next[i] {
		n++
	}
	return n
}

func (fl *freelist) pushFront(idx uint32) {
	fl.next[idx] = fl.head
	fl.prev[idx] = noBlock
	if fl.head != noBlock {
		fl.prev[fl.head] = idx
	}
	fl.head = idx
}

// remove detaches idx from the list. idx must currently be a member.
func (fl *freelist) remove(idx uint32) {
	p, n := fl.prev[idx], fl.next[idx]
	if p != noBlock {
		fl.next[p] = n
	} else {
		fl.head = n
	}
	if n != noBlock {
		fl.prev[n] = p
	}
	fl.next[idx] = noBlock
	fl.prev[idx] = noBlock
}

// popFront removes and returns the head of the list. The list must not be
// empty.
func (fl *freelist) popFront() uint32 {
	idx := fl.head
	fl.remove(idx)
	return idx
}
