package mach

// Machine bundles the simulated physical memory arena and the hart
// coordinator that spec.md's higher layers (buddy, frame, vm, proc) are
// built on top of.
type Machine struct {
	Config Config
	Arena  *Arena
	Harts  *Harts
}

// New builds the simulated machine described by cfg: an mmap-backed arena
// covering [cfg.RAMBase, cfg.PhysTop), with [cfg.ReservedBase,
// cfg.ReservedTop) fenced off via Mprotect if non-empty.
func New(cfg Config) (*Machine, error) {
	size := int(cfg.PhysTop - cfg.RAMBase)
	arena, err := NewArena(cfg.RAMBase, size)
	if err != nil {
		return nil, err
	}
	if cfg.ReservedTop > cfg.ReservedBase {
		if err := arena.Protect(cfg.ReservedBase, int(cfg.ReservedTop-cfg.ReservedBase)); err != nil {
			arena.Close()
			return nil, err
		}
	}
	return &Machine{Config: cfg, Arena: arena, Harts: NewHarts(cfg)}, nil
}
