// Package middleware adapts the engine to net/http: a Guard that
// resolves the session cookie and injects the identity, and cookie
// helpers matching the engine's session settings.
package middleware
