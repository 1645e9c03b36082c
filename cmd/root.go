package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvPrefix prefixes the environment variables that override flags,
// e.g. QOSSIM_LOG=debug or QOSSIM_REPORT_DB=runs.db.
const EnvPrefix = "QOSSIM"

// newRootCmd builds the command tree. Each call returns independent
// commands and settings so tests can run them in isolation.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var closeLog func()
	root := &cobra.Command{
		Use:           "qos-sim",
		Short:         "Discrete-event simulator for QoS routing and scheduling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			c, err := setupLogging(v.GetString("log"), v.GetString("log-file"))
			if err != nil {
				return err
			}
			closeLog = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeLog != nil {
				closeLog()
			}
		},
	}
	root.PersistentFlags().String("log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	root.PersistentFlags().String("log-file", "", "Write logs to this file, rotated by size, instead of stderr")

	root.AddCommand(newRunCmd(v), newRoutesCmd(v), newPresetsCmd(), newRunsCmd(v))
	return root
}

// setupLogging applies the level and, for a non-empty path, redirects the
// standard logger to a rotating file. The returned func restores stderr.
func setupLogging(level, path string) (func(), error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	logrus.SetLevel(lvl)
	if path == "" {
		return func() {}, nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	logrus.SetOutput(lj)
	return func() {
		logrus.SetOutput(os.Stderr)
		_ = lj.Close()
	}, nil
}

// Execute runs the CLI root command.
func Execute() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func execute(args []string, out io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	return root.Execute()
}
