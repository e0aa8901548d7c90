package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/pxKV/cmd/kv"
	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "pxkv",
		Short: "promise-style key-value client",
		Long: fmt.Sprintf(`pxKV (v%s)

A promise-style client layer for key-value stores written in Go.
Every store command becomes an asynchronous operation, and
pattern search and delete are built on the SCAN cursor.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of pxKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pxKV v%s (command catalog %s)\n", Version, store.CatalogVersion)
		},
	}
)

func init() {
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
