// Package cli implements the command-line interface for sparkify-etl.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/config"
	"github.com/sparkifydata/sparkify-etl/internal/db"
	"github.com/sparkifydata/sparkify-etl/internal/logging"
	"github.com/sparkifydata/sparkify-etl/internal/pipeline"
	"github.com/sparkifydata/sparkify-etl/pkg/version"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	dialect  string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "sparkify-etl",
		Short: "Load Sparkify JSON data from S3 into a warehouse star schema",
		Long: `sparkify-etl moves newline-delimited JSON event logs and song metadata
from S3 into a Redshift-style warehouse, then reshapes the loaded rows into
a star schema (songplays fact table; users, time, artists, and songs
dimensions) with warehouse-side SQL.

The pipeline is a fixed, ordered sequence of statements executed over a
single connection: drop/create the seven managed tables, COPY the two
staging tables from S3, then INSERT...SELECT each target table. The first
failing statement halts the run.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./sparkify-etl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "",
		"SQL dialect (redshift, postgres)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(tablesCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dialect != "" {
		cfg.Dialect = dialect
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	return nil
}

// newRunner builds a pipeline runner over the given executor.
func newRunner(exec db.Executor, progress bool) (*pipeline.Runner, error) {
	d, err := pipeline.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(pipeline.RunnerConfig{
		DB:        exec,
		Config:    cfg,
		Dialect:   d,
		Progress:  progress,
		TrackRuns: true,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables managed by the pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("Staging tables (loaded by COPY from S3):")
		for _, t := range pipeline.StagingTables() {
			cmd.Println("  " + t)
		}
		cmd.Println()
		cmd.Println("Dimension tables:")
		for _, t := range pipeline.DimensionTables() {
			cmd.Println("  " + t)
		}
		cmd.Println()
		cmd.Println(fmt.Sprintf("Fact table:\n  %s", pipeline.TableSongplays))
	},
}
