//go:build !linux

// File: internal/affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-Linux platforms have no portable core-pinning syscall wired here;
// Pin is a no-op, matching the teacher's own affinity_stub.go convention.

package affinity

// Pin is a no-op on this platform.
func Pin(cpu int) error { return nil }
