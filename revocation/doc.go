// Package revocation is the single authority that makes logout stick
// while cached identities are still in flight. Revocations are keyed by
// token digest and carry an expiry; writes are max-merge, so a record
// can only ever grow its window. Reads and writes go through one Redis
// key space, which is what gives resolve its read-after-write
// guarantee.
//
// The authority can be linked in-process (Store) or run as its own
// daemon (Server, spoken to through Client).
package revocation
