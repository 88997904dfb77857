// Package handle provides the OS handle and pipe primitives prockit is
// built on: pipe pair creation, nonblocking mode, read/write with unified
// error mapping, idempotent destroy, and a readiness wait over sets of
// handles.
//
// A Handle is either valid and exclusively owned, or Invalid. Destroy
// returns Invalid so owners can self-assign:
//
//	h = h.Destroy()
package handle
