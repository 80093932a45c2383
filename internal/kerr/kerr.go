// Package kerr holds the kernel's recoverable-failure taxonomy.
//
// Invariant violations are never represented here: they are Go panics
// (see spec.md §7). Err_t is only used for data-dependent failures that a
// caller is expected to handle, such as allocator exhaustion or a missing
// page-table mapping.
package kerr

// Err_t is a small negative-space result code, mirroring the C original's
// rstatus_t plus the VM-specific codes vmmappages/copyout/copyin need.
type Err_t int

const (
	// OK indicates success.
	OK Err_t = 0
	// BadAlloc means the buddy or frame allocator returned null.
	BadAlloc Err_t = -1
	// NotFound means a VM operation found no mapping where one was required.
	NotFound Err_t = -2
	// PermissionDenied means a PTE lacked a required permission bit (U, W, ...).
	PermissionDenied Err_t = -3
	// Unknown is an unclassified failure; trap handlers treat it as a kill.
	Unknown Err_t = -4
)

// String renders the code for diagnostics.
func (e Err_t) String() string {
	switch e {
	case OK:
		return "OK"
	case BadAlloc:
		return "BAD_ALLOC"
	case NotFound:
		return "NOT_FOUND"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case Unknown:
		return "UNKNOWN"
	default:
		return "ERR(?)"
	}
}

// Error lets Err_t satisfy the error interface so it composes with ordinary
// Go error handling at syscall boundaries, while kernel-internal code keeps
// comparing it directly against the named constants.
func (e Err_t) Error() string {
	return e.String()
}

// Sys translates an Err_t into the -1-on-any-error convention spec.md §7
// mandates at the syscall boundary: every code becomes -1 unless a more
// specific mapping is supplied by the caller.
func Sys(e Err_t) int {
	if e == OK {
		return 0
	}
	return -1
}
