package main

import (
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/config"
	"github.com/danielpatrickdp/creature-colony/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	logLevel   string
	addr       string
	caller     string
	timeout    time.Duration

	logger *zap.Logger
)

// #region root
var rootCmd = &cobra.Command{
	Use:   "creature",
	Short: "Creature colony: cells, thoughts and strategy analysis over gRPC",
	Long: `creature runs a colony of cells that turn strategy payloads into scored
thoughts. "serve" hosts the colony over gRPC; the other commands are clients.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = os.Getenv(config.EnvLogLevel)
		}
		var err error
		logger, err = logging.NewLogger(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// #endregion root

// #region main
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	for _, cmd := range []*cobra.Command{registerCmd, analyzeCmd, scoresCmd, strategyCmd, metricsCmd} {
		cmd.Flags().StringVar(&addr, "addr", "localhost:50061", "colony server address")
		cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "call timeout")
	}
	for _, cmd := range []*cobra.Command{registerCmd, analyzeCmd} {
		cmd.Flags().StringVar(&caller, "caller", os.Getenv("CREATURE_CALLER"), "caller identity")
	}
	analyzeCmd.Flags().StringVarP(&payloadFile, "file", "f", "", "read the payload from a file ('-' for stdin)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(strategyCmd)
	rootCmd.AddCommand(metricsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main
