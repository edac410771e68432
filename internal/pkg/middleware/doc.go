// Package middleware provides the HTTP middleware chain for the gateway.
//
// Order matters and is fixed by the pipeline:
//
//	RequestID -> CORS -> RateLimit -> Auth (resolve identity) -> guarded handler
//
// RateLimit runs before Auth: admission is decided on the caller's network
// address and must stay cheap, so it never waits on token verification.
// CORS answers OPTIONS preflights before admission is consulted: preflight
// traffic carries no credential or body and is exempt from the quota.
package middleware
