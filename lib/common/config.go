package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// Backend selects the store a session talks to
type Backend string

const (
	BackendMemory Backend = "memory" // in-process store over the memdb engine
	BackendBolt   Backend = "bolt"   // in-process store over a bbolt file
	BackendRedis  Backend = "redis"  // remote store speaking RESP
)

// ParseBackend validates a backend name
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendMemory, BackendBolt, BackendRedis:
		return b, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected one of: memory, bolt, redis)", s)
	}
}

// ClientConfig holds everything needed to open a store and wrap it in a session
type ClientConfig struct {
	Backend Backend

	// redis backend
	Endpoints []string
	Password  string
	DB        int

	// bolt backend
	BoltPath string

	// TimeoutSecond bounds a single store call (redis backend only, 0 = no timeout)
	TimeoutSecond int

	// ThrowErrors controls whether failed operations reject their promise
	ThrowErrors bool

	LogLevel string
}

// DefaultClientConfig returns the configuration used when nothing is set
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Backend:       BackendMemory,
		Endpoints:     []string{"localhost:6379"},
		BoltPath:      "pxkv.db",
		TimeoutSecond: 5,
		ThrowErrors:   true,
		LogLevel:      "info",
	}
}

// Timeout returns TimeoutSecond as a duration
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Backend", string(c.Backend))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Throw Errors", strconv.FormatBool(c.ThrowErrors))
	addField("Log Level", c.LogLevel)

	switch c.Backend {
	case BackendRedis:
		addSection("Endpoints")
		for i, endpoint := range c.Endpoints {
			addField(strconv.Itoa(i), endpoint)
		}
		addField("Database", strconv.Itoa(c.DB))
	case BackendBolt:
		addSection("Storage")
		addField("Bolt File", c.BoltPath)
	}

	return sb.String()
}
