package main

import (
	"github.com/leandrodaf/perfdiff/internal/config"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/leandrodaf/perfdiff/sdk/perfdiff"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "perfdiff",
	Short: "Compare a played performance against a score",
	Long: `perfdiff captures a performance from a MIDI device, a microphone or the computer keyboard,
sends it to the scoring service and draws the differences over the score.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to the console in development format")
}

// Execute runs the root command.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func newLogger() contracts.Logger {
	var l contracts.Logger
	if verbose {
		l = logger.NewDevelopmentLogger()
	} else {
		l = logger.NewZapLogger()
	}
	if logLevel != "" {
		l.SetLevel(contracts.ParseLogLevel(logLevel))
	}
	return l
}

func newSession(opts ...perfdiff.Option) (*perfdiff.Session, error) {
	base := []perfdiff.Option{
		perfdiff.WithConfigFile(configPath),
		perfdiff.WithLogger(newLogger()),
	}
	return perfdiff.NewSession(append(base, opts...)...)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	return config.Load(path)
}
