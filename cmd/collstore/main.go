// Command collstore is a thin CLI over the collstore client library:
// connect to any registered backend via a connection URL and run a single
// get/put/scan/rm/stat operation against one collection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/collstore/internal/log"

	_ "github.com/cuemby/collstore/pkg/backend/dynamo"
	_ "github.com/cuemby/collstore/pkg/backend/memory"
	_ "github.com/cuemby/collstore/pkg/backend/mongo"
	_ "github.com/cuemby/collstore/pkg/backend/postgres"
	_ "github.com/cuemby/collstore/pkg/backend/redis"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "collstore",
	Short:   "Inspect and operate a collstore-backed collection from the command line",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("collstore version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("url", "", "Connection URL (falls back to COLLSTORE_URL)")
	rootCmd.PersistentFlags().StringSlice("unique", nil, "Declare attr as a unique index (repeatable)")
	rootCmd.PersistentFlags().StringSlice("index", nil, "Declare attr as a non-unique index (repeatable)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(statCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}
