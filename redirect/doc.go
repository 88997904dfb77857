// Package redirect decides where each standard stream of a child process
// goes. For every stream it produces a (parent end, child end) handle pair
// implementing one of: a fresh pipe, inheriting the parent's stream,
// discarding to the null device, duplicating another parent stream, or a
// caller-supplied handle.
//
// Child ends returned by Init are always owned duplicates; the launcher
// closes them after the child has inherited its copies.
package redirect
