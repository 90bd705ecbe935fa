package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/logging"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "tutordesk",
	Short:         "Student support assistant for an education center",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", color.NoColor, "disable colored output")
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, chatCmd, ingestCmd, knowledgeCmd, classifyCmd, configCmd)
}

func main() {
	// Config loading logs through zap before the configured logger exists.
	if l, err := logging.New("warn", ""); err == nil {
		zap.ReplaceGlobals(l)
	}
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
