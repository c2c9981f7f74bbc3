package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/gotrue-go/internal/app"
	"github.com/samvad-hq/gotrue-go/internal/config"
	"github.com/samvad-hq/gotrue-go/internal/logger"
	"github.com/samvad-hq/gotrue-go/pkg/gotrue"
	"github.com/spf13/pflag"
)

func main() {
	cmd, err := run(os.Args[1:])
	if err == nil {
		return
	}
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if cmd == "" {
		cmd = "start"
	}
	fmt.Fprintf(os.Stderr, "gotrue %s failed: %v\n", cmd, err)
	if _, ok := gotrue.AsServiceError(err); ok {
		os.Exit(2)
	}
	os.Exit(1)
}

func run(args []string) (string, error) {
	fs := pflag.NewFlagSet("gotrue", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		app.Usage(os.Stderr)
		fmt.Fprintln(os.Stderr, "\nGlobal flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return "", errors.New("missing command")
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	cfg, err := config.Load(fs)
	if err != nil {
		return cmd, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return cmd, fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("gotrue cli starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize cli", "error", err.Error())
		return cmd, err
	}
	defer a.Close()

	if err := a.Run(ctx, cmd, cmdArgs); err != nil {
		if errors.Is(err, app.ErrUnknownCommand) {
			app.Usage(os.Stderr)
		}
		return cmd, err
	}
	return cmd, nil
}
