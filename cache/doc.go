// Package cache is the two-tier read-through identity cache: a small
// in-process map in front of Redis. Both tiers hold short-lived derived
// state only; the session ledger remains the source of truth and the
// revocation authority is always consulted before a cached entry is
// trusted.
package cache
