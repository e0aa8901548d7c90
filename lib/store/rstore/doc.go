// Package rstore implements store.IStore on top of a RESP server (Redis,
// Valkey, KeyDB ...) using github.com/redis/go-redis/v9.
//
// Every catalog command is forwarded verbatim with client.Do. Replies are
// delivered to the callback from a separate goroutine, the way a network
// client reports them. The nil reply is reported as a nil result without
// error. Commands that need connection affinity (SELECT, MULTI, WATCH ...)
// are bound as internal, transactions go through store.ITx instead, which
// maps exec_transaction to MULTI/EXEC and exec to a plain pipeline.
package rstore
