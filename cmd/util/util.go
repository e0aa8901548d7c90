package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/pxKV/lib/common"
	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/ValentinKolb/pxKV/lib/db/engines/boltdb"
	"github.com/ValentinKolb/pxKV/lib/db/engines/memdb"
	"github.com/ValentinKolb/pxKV/lib/session"
	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/ValentinKolb/pxKV/lib/store/lstore"
	"github.com/ValentinKolb/pxKV/lib/store/rstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the store and session flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	defaults := common.DefaultClientConfig()

	key := "backend"
	cmd.PersistentFlags().String(key, string(defaults.Backend), WrapString("The store to use (memory, bolt, redis)"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, strings.Join(defaults.Endpoints, ","), WrapString("Address of the RESP server (redis backend). Multiple endpoints can be specified as a comma-separated list to connect to a cluster"))

	key = "password"
	cmd.PersistentFlags().String(key, "", WrapString("Password for the RESP server (redis backend)"))

	key = "db"
	cmd.PersistentFlags().Int(key, defaults.DB, WrapString("Database number on the RESP server (redis backend)"))

	key = "bolt-path"
	cmd.PersistentFlags().String(key, defaults.BoltPath, WrapString("Path of the database file (bolt backend)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, defaults.TimeoutSecond, WrapString("The timeout in seconds of a single operation (0 = none)"))

	key = "throw-errors"
	cmd.PersistentFlags().Bool(key, defaults.ThrowErrors, WrapString("Whether failed operations fail the command. If false, errors are only reported as the last error of the session"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("Log level (debug, info, warning, error, critical)"))

	key = "print-metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the session metrics in Prometheus text format after the command"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("pxkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	backend, err := common.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return nil, err
	}

	var endpoints []string
	for _, e := range strings.Split(viper.GetString("endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return &common.ClientConfig{
		Backend:       backend,
		Endpoints:     endpoints,
		Password:      viper.GetString("password"),
		DB:            viper.GetInt("db"),
		BoltPath:      viper.GetString("bolt-path"),
		TimeoutSecond: viper.GetInt("timeout"),
		ThrowErrors:   viper.GetBool("throw-errors"),
		LogLevel:      viper.GetString("log-level"),
	}, nil
}

// GetStore opens the store selected by the configuration
func GetStore(conf *common.ClientConfig) (store.IStore, error) {
	switch conf.Backend {
	case common.BackendMemory:
		return lstore.NewLocalStore(func() (db.KVDB, error) {
			return memdb.NewMemDB(nil), nil
		}, nil)
	case common.BackendBolt:
		return lstore.NewLocalStore(func() (db.KVDB, error) {
			return boltdb.NewBoltDB(boltdb.DBOptions{Path: conf.BoltPath})
		}, nil)
	case common.BackendRedis:
		return rstore.NewRedisStore(rstore.Options{
			Endpoints: conf.Endpoints,
			Password:  conf.Password,
			DB:        conf.DB,
			Timeout:   conf.Timeout(),
		})
	default:
		return nil, fmt.Errorf("invalid backend %s", conf.Backend)
	}
}

// GetSession initializes the loggers, opens the store and wraps it in a session
func GetSession(conf *common.ClientConfig) (*session.Session, store.IStore, error) {
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, nil, err
	}

	st, err := GetStore(conf)
	if err != nil {
		return nil, nil, err
	}

	return session.New(st, &session.Config{ThrowErrors: conf.ThrowErrors}), st, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
