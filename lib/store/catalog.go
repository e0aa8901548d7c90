package store

// CatalogVersion identifies the command catalog below.
// Stores report the catalog they were built against through IStore.Commands.
const CatalogVersion = "2024.1"

// Catalog is the fixed, ordered list of command names a session may expose.
// The list follows the RESP command table; whether a name is actually exposed
// depends on the store binding it.
var Catalog = []string{
	// connection
	"auth", "echo", "ping", "quit", "select", "swapdb",
	// keyspace
	"copy", "del", "dump", "exists", "expire", "expireat", "expiretime", "keys", "move",
	"object", "persist", "pexpire", "pexpireat", "pexpiretime", "pttl", "randomkey",
	"rename", "renamenx", "restore", "restore-asking", "scan", "sort", "sort_ro", "touch",
	"ttl", "type", "unlink", "wait",
	// strings
	"append", "decr", "decrby", "get", "getdel", "getex", "getrange", "getset", "incr",
	"incrby", "incrbyfloat", "lcs", "mget", "mset", "msetnx", "psetex", "set", "setex",
	"setnx", "setrange", "strlen", "substr",
	// hashes
	"hdel", "hexists", "hget", "hgetall", "hincrby", "hincrbyfloat", "hkeys", "hlen",
	"hmget", "hmset", "hrandfield", "hscan", "hset", "hsetnx", "hstrlen", "hvals",
	// lists
	"blmove", "blmpop", "blpop", "brpop", "brpoplpush", "lindex", "linsert", "llen",
	"lmove", "lmpop", "lpop", "lpos", "lpush", "lpushx", "lrange", "lrem", "lset", "ltrim",
	"rpop", "rpoplpush", "rpush", "rpushx",
	// sets
	"sadd", "scard", "sdiff", "sdiffstore", "sinter", "sintercard", "sinterstore",
	"sismember", "smembers", "smismember", "smove", "spop", "srandmember", "srem", "sscan",
	"sunion", "sunionstore",
	// sorted sets
	"zadd", "zcard", "zcount", "zincrby", "zrange", "zrangebyscore", "zrank", "zrem",
	"zrevrange", "zrevrank", "zscan", "zscore",
	// hyperloglog
	"pfadd", "pfcount", "pfmerge",
	// transactions
	"discard", "exec", "multi", "unwatch", "watch",
	// scripting
	"eval", "evalsha", "script",
	// server
	"bgsave", "client", "config", "dbsize", "flushall", "flushdb", "info", "lastsave",
	"memory", "save", "time",
}
