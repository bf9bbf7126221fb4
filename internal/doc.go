// Package internal holds the token codec shared by the engine and its
// subpackages. It is not part of the public API.
package internal
