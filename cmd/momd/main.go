package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoseTor101/mom-middleware/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "momd",
	Short: "momd - distributed message-oriented middleware broker",
	Long: `momd runs one broker instance of the MOM middleware cluster.

Brokers accept messages published to partitioned topics, store them in a
shared coordination store, and deliver them to consumers on demand. Any
broker can be promoted to master through leader election; a single binary
carries both roles.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"momd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("redis-addr", "", "Coordination store address (host:port)")
	rootCmd.PersistentFlags().String("state-file", "", "Path to the JSON state file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(topicCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
