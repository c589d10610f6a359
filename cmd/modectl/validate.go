package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atlanticdynamic/modectl/internal/config"
	"github.com/atlanticdynamic/modectl/internal/fancy"
	"github.com/urfave/cli/v3"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"lint"},
		Usage:   "Validate a configuration file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "tree",
				Aliases: []string{"t"},
				Usage:   "Show detailed tree view of the validated configuration",
			},
			configFlag(),
		},
		Suggest: true,
		Action:  validateAction,
	}
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	return validateLocal(cmd.Root().Writer, path, cmd.Bool("tree"))
}

// renderConfigSummary creates a formatted summary string for the configuration
func renderConfigSummary(path string, cfg *config.Config) string {
	var summary strings.Builder

	summary.WriteString("\nConfig Summary:\n")
	fmt.Fprintf(&summary, "- Path: %s\n", path)
	fmt.Fprintf(&summary, "- Joints: %s\n", count(len(cfg.Robot.Joints)))
	fmt.Fprintf(&summary, "- Frames: %s\n", count(len(cfg.Robot.Frames)))
	if cfg.Locomotion != nil {
		fmt.Fprintf(&summary, "- Locomotion: %s\n", cfg.Locomotion.Name)
	}
	fmt.Fprintf(&summary, "- Hands: %s\n", count(len(cfg.Hands)))
	fmt.Fprintf(&summary, "- Operator: %t\n", cfg.Operator.Enabled)
	fmt.Fprintf(&summary, "- Recovery: %t\n", cfg.Recovery.Enabled)
	summary.WriteString("\nUse --tree for a more detailed view of the config.")

	return summary.String()
}

func count(n int) string {
	return fancy.CountText(strconv.Itoa(n))
}

func validateLocal(w io.Writer, path string, treeView bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Fprintln(w, fancy.ValidText(fmt.Sprintf("Configuration file %s is valid", path)))

	if treeView {
		fmt.Fprintln(w, cfg)
		return nil
	}

	fmt.Fprintln(w, renderConfigSummary(path, cfg))
	return nil
}
