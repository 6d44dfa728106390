// Package cmd implements the acbp command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/dotk-io/acbp/internal/logging"
)

type logLevel enumflag.Flag

const (
	logDebug logLevel = iota
	logInfo
	logWarn
	logError
)

var logLevelIDs = map[logLevel][]string{
	logDebug: {"debug"},
	logInfo:  {"info"},
	logWarn:  {"warn", "warning"},
	logError: {"error"},
}

type logFormat enumflag.Flag

const (
	logText logFormat = iota
	logJSON
)

var logFormatIDs = map[logFormat][]string{
	logText: {"text"},
	logJSON: {"json"},
}

var (
	flagLogLevel  = logInfo
	flagLogFormat = logText
)

func Root() *cobra.Command {
	root := &cobra.Command{
		Use:           "acbp",
		Short:         "Compile constraint bitmask models into SQL decision spaces",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().Var(
		enumflag.New(&flagLogLevel, "level", logLevelIDs, enumflag.EnumCaseInsensitive),
		"log-level", "log level (debug, info, warn, error)")
	root.PersistentFlags().Var(
		enumflag.New(&flagLogFormat, "format", logFormatIDs, enumflag.EnumCaseInsensitive),
		"log-format", "log format (text, json)")

	root.AddCommand(compileCommand())
	root.AddCommand(applyCommand())
	root.AddCommand(explainCommand())
	return root
}

func newLogger() *logging.Logger {
	format := logging.FormatText
	if flagLogFormat == logJSON {
		format = logging.FormatJSON
	}
	return logging.NewLogger(logging.Config{Level: int(flagLogLevel), Format: format})
}
