// Package snapshot produces reference-stable derived views.
//
// An Emitter remembers, per view key, the last emitted value and the
// primitive fields it was built from. When the fields are unchanged the
// prior value is returned as-is, so memoized consumers can compare by
// identity and skip work on no-op updates. Only primitives belong in the
// fingerprint; timestamps and callback identities that change without
// semantic difference are deliberately left out by callers.
package snapshot
