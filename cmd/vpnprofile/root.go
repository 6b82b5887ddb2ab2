package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"vpnprofile/internal/app"
	"vpnprofile/internal/config"
	"vpnprofile/internal/logger"
)

var cfgFile string
var verbose bool
var logFile string

var rootCmd = &cobra.Command{
	Use:   "vpnprofile",
	Short: "Manage VPN connection profiles and resolve them to server endpoints",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose, logFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// mustOpen loads the config and opens the application state, exiting on
// failure like every other command error.
func mustOpen(ctx context.Context) *app.App {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Log.Fatalf("Error loading config: %v", err)
	}
	a, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Error opening state: %v", err)
	}
	return a
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stdout (overwrites file)")
}
