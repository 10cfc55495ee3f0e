package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/config"
	"github.com/jsphweid/levelup/constants"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFormat  string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", constants.GetLogLevel(), "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text, json or logfmt")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", constants.GetConfigPath(), "jam config file (yaml)")
}

var rootCmd = &cobra.Command{
	Use:   "levelup",
	Short: "Collaborative generative ambient music",
	Long: `levelup plays slow ambient loops over a randomly chosen scale and lets
everyone connected to the same server add notes to them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		log.SetDefault(logger)
		cmd.SetContext(log.WithContext(cmd.Context(), logger))
		return nil
	},
}

func newLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("bad log level: %w", err)
	}
	var formatter log.Formatter
	switch logFormat {
	case "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", logFormat)
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
	}), nil
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
