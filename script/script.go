// Package script runs command line entry points with standardized logging,
// .env loading, telemetry setup, signal handling and exit codes.
package script

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/telemetry"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 5 * time.Second

// Option is a function that configures a Script.
type Option func(script *Script)

// Exit returns an error that will cause the script to exit with the given code.
// Use this to exit with a specific code without logging an error.
func Exit(code int) error {
	return &exitError{
		code: code,
	}
}

// ExitWithError returns an error that will cause the script to exit with code 1
// and log the provided error.
func ExitWithError(err error) error {
	return &exitError{
		err:  err,
		code: 1,
	}
}

// ExitWithErrorMessage returns an error that will cause the script to exit with code 1
// and log a formatted error message.
func ExitWithErrorMessage(msg string, args ...any) error {
	return &exitError{
		err:  fmt.Errorf(msg, args...), //nolint:err113
		code: 1,
	}
}

type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string {
	msg := "exit " + strconv.FormatInt(int64(e.code), 10)

	if e.err != nil {
		return msg + ": " + e.err.Error()
	}

	return msg
}

func (e *exitError) Unwrap() error {
	return e.err
}

// LegacyLogLevel sets the legacy log level for the script's logger.
func LegacyLogLevel(lvl slog.Level) Option {
	return func(script *Script) {
		script.loggerOpts = append(script.loggerOpts, func(options *logger.Options) {
			options.LegacyLevel = lvl
		})
	}
}

// LogLevel sets the minimum log level for the script's logger.
func LogLevel(lvl slog.Level) Option {
	return func(script *Script) {
		script.loggerOpts = append(script.loggerOpts, func(options *logger.Options) {
			options.MinLevel = lvl
		})
	}
}

// LogOutput sets the output writer for the script's logger.
func LogOutput(writer io.Writer) Option {
	return func(script *Script) {
		script.loggerOpts = append(script.loggerOpts, logger.WithOutput(writer))
	}
}

// EnableFlagParse controls whether flag.Parse() is called before running the script.
// Defaults to true.
func EnableFlagParse(enabled bool) Option {
	return func(script *Script) {
		script.flagParseEnable = enabled
	}
}

// WithEnvFile loads variables from a .env file before logging is configured.
// Variables already present in the environment win. A missing file is skipped.
func WithEnvFile(path string) Option {
	return func(script *Script) {
		script.envFiles = append(script.envFiles, path)
	}
}

// WithTelemetry controls whether OpenTelemetry is initialized from the
// environment before the callback runs. Defaults to true.
func WithTelemetry(enabled bool) Option {
	return func(script *Script) {
		script.telemetry = enabled
	}
}

// Script represents a runnable script with configured logging and signal handling.
type Script struct {
	name            string
	flagParseEnable bool
	telemetry       bool
	envFiles        []string
	loggerOpts      []logger.Option
}

// New creates a new Script with the given name and options.
// By default, flag parsing and telemetry are enabled.
func New(scriptName string, opts ...Option) *Script {
	script := &Script{
		name:            scriptName,
		flagParseEnable: true,
		telemetry:       true,
	}

	for _, opt := range opts {
		opt(script)
	}

	return script
}

// Run executes the script with the provided function, handling signal interrupts
// and exit codes. The context passed to f is canceled on SIGINT or SIGTERM.
// This function calls os.Exit and does not return.
func (r *Script) Run(f func(ctx context.Context) error) {
	os.Exit(r.run(f))
}

func (r *Script) run(callback func(ctx context.Context) error) int {
	if r.flagParseEnable {
		flag.Parse()
	}

	envErr := loadEnvFiles(r.envFiles)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	stopOnce := sync.Once{}
	cancel := func() {
		stopOnce.Do(stop)
	}

	defer cancel()

	if _, err := logger.ConfigureLogging(r.name, r.loggerOpts...); err != nil {
		slog.Error("error configuring logging", "error", err)

		return 1
	}

	log := logger.Get(ctx)

	if envErr != nil {
		log.Error("error loading env file", "error", envErr)

		return 1
	}

	if r.telemetry {
		if err := startTelemetry(ctx, r.name); err != nil {
			log.Error("error initializing telemetry", "error", err)

			return 1
		}

		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()

			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				log.Warn("error shutting down telemetry", "error", err)
			}
		}()
	}

	if callback == nil {
		log.Error("callback is nil")

		return 1
	}

	err := callback(ctx)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.code != 0 {
			log.Error("error running script", "error", err)
		}

		return exitErr.code
	}

	log.Error("error running script", "error", err)

	return 1
}

func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return fmt.Errorf("%s: %w", path, err)
		}
	}

	return nil
}

func startTelemetry(ctx context.Context, name string) error {
	cfg, err := telemetry.LoadConfigFromEnv(name)
	if err != nil {
		return err
	}

	return telemetry.Initialize(ctx, cfg)
}
