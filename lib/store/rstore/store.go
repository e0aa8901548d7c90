package rstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
)

var (
	Logger = logger.GetLogger("rstore")
)

// Options configures the connection to the RESP server(s)
type Options struct {
	Endpoints []string      // one address = single node, several = cluster
	Password  string        // AUTH password (empty = none)
	DB        int           // database number, ignored in cluster mode
	Timeout   time.Duration // per command timeout (0 = 5 sec)
}

// connection level commands need a dedicated connection and are not exposed
var connectionCommands = map[string]bool{
	"auth": true, "quit": true, "select": true, "swapdb": true,
	"multi": true, "exec": true, "discard": true, "watch": true, "unwatch": true,
}

type storeImpl struct {
	client  redis.UniversalClient
	timeout time.Duration
	known   map[string]bool
}

// NewRedisStore connects to a RESP server using go-redis and returns a store
// that forwards every catalog command to it. The connection is verified with a PING.
func NewRedisStore(opts Options) (store.IStore, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("rstore: no endpoints given")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    opts.Endpoints,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rstore: cannot reach %s: %w", strings.Join(opts.Endpoints, ","), err)
	}

	known := make(map[string]bool, len(store.Catalog))
	for _, name := range store.Catalog {
		known[name] = true
	}

	Logger.Infof("connected to %s", strings.Join(opts.Endpoints, ","))
	return &storeImpl{client: client, timeout: opts.Timeout, known: known}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Commands() []string {
	return store.Catalog
}

func (s *storeImpl) Lookup(name string) (store.Binding, bool) {
	name = strings.ToLower(name)
	if !s.known[name] {
		return store.Binding{}, false
	}

	bindingName := "rstore." + name
	if connectionCommands[name] {
		bindingName = "rstore." + store.InternalMarker + "." + name
	}

	return store.Binding{
		Name: bindingName,
		Fn: func(args []any, cb store.Callback) {
			// replies are delivered from the client goroutine like a network client would
			go func() {
				cb(s.do(name, args))
			}()
		},
	}, true
}

func (s *storeImpl) Transaction(cmds ...[]any) store.ITx {
	tx := &txImpl{s: s}
	for _, c := range cmds {
		if len(c) == 0 {
			continue
		}
		tx.Queue(fmt.Sprint(c[0]), c[1:]...)
	}
	return tx
}

func (s *storeImpl) Close() error {
	return s.client.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *storeImpl) do(name string, args []any) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.client.Do(ctx, command(name, args)...).Result()
	return reply(res, err)
}

func command(name string, args []any) []any {
	cmd := make([]any, 0, len(args)+1)
	cmd = append(cmd, name)
	return append(cmd, args...)
}

// reply maps the nil reply to a nil result
func reply(res any, err error) (any, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
