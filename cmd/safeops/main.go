package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args)
	stop()
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, args []string) error {
	return newApp(out).RunContext(ctx, args)
}

var (
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Logging level: debug, info, warn or error",
		Value: "info",
	}
	logFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log output format: text or json",
		Value: "text",
	}
	networkFileFlag = &cli.StringFlag{
		Name:  "network-file",
		Usage: "YAML file overriding the Sepolia contract set",
	}
	docsDirFlag = &cli.StringFlag{
		Name:  "docs-dir",
		Usage: "Directory of the deployed address files",
		Value: "docs",
	}
	paymentFlag = &cli.StringFlag{
		Name:  "payment",
		Usage: "How user operations pay for gas: native, sponsored, erc20 or verifying",
		Value: "native",
	}
	paymentTokenFlag = &cli.StringFlag{
		Name:  "payment-token",
		Usage: "ERC-20 token paying for gas with --payment erc20 (defaults to the network test token)",
	}
	paymasterFlag = &cli.StringFlag{
		Name:  "paymaster",
		Usage: "Verifying paymaster contract used with --payment verifying",
	}
	saltNonceFlag = &cli.StringFlag{
		Name:  "salt-nonce",
		Usage: "Salt nonce of the Safe proxy",
		Value: "0",
	}
	randomSaltFlag = &cli.BoolFlag{
		Name:  "random-salt",
		Usage: "Use the current time in milliseconds as salt nonce",
	}
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "safeops",
		Usage:     "Operational tasks for Safe accounts on ERC-4337 infrastructure",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			logLevelFlag,
			logFormatFlag,
			networkFileFlag,
			docsDirFlag,
			paymentFlag,
			paymentTokenFlag,
			paymasterFlag,
			saltNonceFlag,
			randomSaltFlag,
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.String(logLevelFlag.Name), c.String(logFormatFlag.Name), c.App.ErrWriter)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			LoadEnv()
			return nil
		},
		Commands: []*cli.Command{
			envCmd,
			networkCheckCmd,
			fundsCmd,
			safeCmd,
			modulesCmd,
			infraCmd,
			userOpCmd,
			handleOpsCmd,
			bundlerCmd,
			fundCmd,
			deployCmd,
			counterCmd,
			entryPointCmd,
			gelatoCmd,
			runAllCmd,
		},
		// errors are mapped to exit codes in main
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, usageError("invalid log-format: must be 'text' or 'json'")
}
