// Package redis holds the Redis-backed caches used by the staking tools.
// Values are opaque byte slices so callers keep ownership of their encoding.
package redis
