// Package kv implements the "pxkv kv" command group. Every command opens the
// configured store, wraps it in a session, runs one session operation and
// prints its reply in redis-cli style.
package kv
