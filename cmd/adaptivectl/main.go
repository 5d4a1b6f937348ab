package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	dbOverride string
	logLevel   string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "adaptivectl",
		Short:         "Operator CLI for the quizierra adaptive engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCommand.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to config file (defaults to ./config.yaml or $QUIZIERRA_CONFIG)")
	flags.StringVar(&dbOverride, "db", "", "Database DSN or SQLite path (overrides database.dsn)")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCommand.AddCommand(newMigrateCommand())
	rootCommand.AddCommand(newSeedCommand())
	rootCommand.AddCommand(newSkillCommand())
	rootCommand.AddCommand(newNextCommand())
	rootCommand.AddCommand(newRecordCommand())
	rootCommand.AddCommand(newHistoryCommand())
	rootCommand.AddCommand(newStatsCommand())

	return rootCommand
}
