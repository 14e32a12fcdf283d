// Package ratelimit implements the gateway's three-scope token-bucket rate
// limiting: a global bucket, lazily-created per-IP buckets, and lazily
// created per-identity buckets, with idle eviction for the latter two.
package ratelimit
