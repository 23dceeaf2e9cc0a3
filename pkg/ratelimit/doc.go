// Package ratelimit provides per-client token-bucket rate limiting
// middleware for the status API.
package ratelimit
