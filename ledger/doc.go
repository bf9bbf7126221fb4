// Package ledger is the durable source of truth for issued sessions.
//
// Every session the engine hands out has exactly one row here, keyed by
// the token digest. Caches and the revocation authority are derived
// views; when they disagree with the ledger, the ledger wins (after the
// revocation authority has had its say).
package ledger
