package main

import (
	"context"
	"fmt"
	"os"

	"github.com/atlanticdynamic/modectl/internal/fancy"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "modectl",
		Version: Version,
		Usage:   "Run and inspect a mode-driven robot control stack",
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			describeCommand(),
			versionCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, fancy.ErrorText(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}

// configPath reads --config, falling back to the first positional argument.
func configPath(cmd *cli.Command) (string, error) {
	if p := cmd.String("config"); p != "" {
		return p, nil
	}
	if cmd.Args().Len() < 1 {
		return "", fmt.Errorf(
			"config file path required (use the --config flag, or provide the config file as positional argument)",
		)
	}
	return cmd.Args().Get(0), nil
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the TOML configuration file",
		Sources: cli.EnvVars("MODECTL_CONFIG"),
	}
}
