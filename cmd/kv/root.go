package kv

import (
	"context"
	"os"

	"github.com/ValentinKolb/pxKV/cmd/util"
	"github.com/ValentinKolb/pxKV/lib/common"
	"github.com/ValentinKolb/pxKV/lib/session"
	"github.com/ValentinKolb/pxKV/lib/store"
	vmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Logger = logger.GetLogger("cli")

	kvSession *session.Session
	kvStore   store.IStore
	kvConfig  *common.ClientConfig

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupSession,
		PersistentPostRunE: teardownSession,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(KeyValueCommands)

	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(getDefaultCmd)
	KeyValueCommands.AddCommand(getJSONCmd)
	KeyValueCommands.AddCommand(setJSONCmd)
	KeyValueCommands.AddCommand(searchCmd)
	KeyValueCommands.AddCommand(delSearchCmd)
	KeyValueCommands.AddCommand(doCmd)
	KeyValueCommands.AddCommand(multiCmd)
	KeyValueCommands.AddCommand(commandsCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupSession opens the configured store and wraps it in a session
func setupSession(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	kvConfig = conf

	kvSession, kvStore, err = util.GetSession(conf)
	if err != nil {
		return err
	}
	Logger.Debugf("session ready (backend=%s)", conf.Backend)
	return nil
}

func teardownSession(_ *cobra.Command, _ []string) error {
	if viper.GetBool("print-metrics") {
		vmetrics.WritePrometheus(os.Stdout, false)
	}
	if kvSession != nil {
		kvSession.Close()
	}
	if kvStore != nil {
		return kvStore.Close()
	}
	return nil
}

// await waits for p, bounded by the configured timeout
func await(cmd *cobra.Command, p *session.Promise) (any, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if kvConfig != nil && kvConfig.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, kvConfig.Timeout())
		defer cancel()
	}

	res, err := p.Await(ctx)
	if err != nil {
		return nil, err
	}

	// with throw-errors disabled failures resolve with nil
	if lastErr := kvSession.LastError(); !kvSession.ThrowErrors() && lastErr != nil {
		cmd.PrintErrf("(error) %v\n", lastErr)
	}
	return res, nil
}
