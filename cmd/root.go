// Package cmd wires the classifier's packages into a cobra CLI: load
// configuration, read a track file, run EM to convergence, and emit
// posterior-based summary tables.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "covhmm",
	Short: "Multi-region HMM coverage classifier",
}

// Execute runs the CLI, exiting with a non-zero status on any command
// error (§6: non-zero exit on missing mandatory inputs or infeasible
// parameters).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	cobra.OnInitialize(func() {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: "15:04:05", FullTimestamp: true})
	})
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(defaultConfigCmd)
}
