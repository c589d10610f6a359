package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/bootstrap"
	"github.com/atlanticdynamic/modectl/internal/config"
	"github.com/atlanticdynamic/modectl/internal/logging"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the control loop and its supporting services",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Dotenv files loaded before the configuration (default .env)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if err := config.LoadDotEnv(cmd.StringSlice("env-file")...); err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	out, err := logging.OpenOutput(cfg.Logging.Output)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	handler, err := logging.NewHandler(cfg.Logging.Format, cfg.Logging.Level, out)
	if err != nil {
		return err
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	stack, err := bootstrap.Build(cfg, handler, bootstrap.Options{Version: cmd.Root().Version})
	if err != nil {
		return fmt.Errorf("failed to build control stack: %w", err)
	}
	logger.Info("Starting modectl", "config", path, "controllers", len(stack.Controllers()))

	if err := stack.Run(ctx); err != nil {
		return err
	}
	return nil
}
