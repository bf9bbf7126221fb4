// Package password hashes and verifies login passwords with Argon2id,
// serialized in the PHC string format.
package password
