// Package cli implements the llamactx command tree.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamactx/internal/config"
	"llamactx/internal/engine"
	"llamactx/internal/httpapi"
	"llamactx/internal/logging"
)

// newBinding selects the native engine. Tests swap in a fake.
var newBinding = engine.NewLlamaBinding

// RootOptions holds global flags and the configuration resolved from them.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	cfg config.Config
	log zerolog.Logger
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "llamactx",
		Short:         "Run local GGUF models through managed inference contexts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .json or .toml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", config.DefaultLogLevel, "log level: debug|info|warn|error|off")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", config.DefaultLogFormat, "log format: console|json")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewModelsCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewTokenizeCommand(opts))
	cmd.AddCommand(NewBenchCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// resolve loads the config file, applies flag overrides, validates the
// result and installs the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "load config", err)
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") || o.ConfigPath == "" {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("log-format") || o.ConfigPath == "" {
		cfg.LogFormat = o.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "config", err)
	}
	o.cfg = cfg
	o.log = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	httpapi.SetLogger(o.log)
	httpapi.SetCORSOptions(cfg.Admin.CORSEnabled, cfg.Admin.CORSOrigins, cfg.Admin.CORSMethods, cfg.Admin.CORSHeaders)
	return nil
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "llamactx: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2 // bad flags, config or paths
)

// ExitError carries an exit code alongside the error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors without one map to
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
