package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/bootstrap"
	"github.com/atlanticdynamic/modectl/internal/config"
	"github.com/urfave/cli/v3"
)

func describeCommand() *cli.Command {
	return &cli.Command{
		Name:  "describe",
		Usage: "Print the mode transition tables of the configured controllers",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "controller",
				Usage: "Only describe the named controller",
			},
			&cli.BoolFlag{
				Name:    "tree",
				Aliases: []string{"t"},
				Usage:   "Render each machine as a tree instead of a table",
			},
		},
		Action: describeAction,
	}
}

func describeAction(_ context.Context, cmd *cli.Command) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Nothing is started; the operator and recovery services are irrelevant.
	cfg.Operator.Enabled = false
	cfg.Recovery.Enabled = false

	stack, err := bootstrap.Build(cfg, slog.DiscardHandler, bootstrap.Options{})
	if err != nil {
		return err
	}
	return describe(cmd.Root().Writer, stack, cmd.String("controller"), cmd.Bool("tree"))
}

func describe(w io.Writer, stack *bootstrap.Stack, only string, treeView bool) error {
	var found bool
	for _, d := range machines(stack) {
		if only != "" && d.name != only {
			continue
		}
		found = true
		fmt.Fprintf(w, "%s\n", d.name)
		if treeView {
			fmt.Fprintln(w, d.tree())
		} else {
			fmt.Fprintln(w, d.describe())
		}
	}
	if !found {
		return fmt.Errorf("no controller named %q", only)
	}
	return nil
}

type machineView struct {
	name     string
	describe func() string
	tree     func() fmt.Stringer
}

func machines(stack *bootstrap.Stack) []machineView {
	var out []machineView
	if l := stack.Locomotion; l != nil {
		m := l.Machine()
		out = append(out, machineView{
			name:     l.Name(),
			describe: m.Describe,
			tree:     func() fmt.Stringer { return m.Tree() },
		})
	}
	for _, h := range stack.Hands {
		m := h.Machine()
		out = append(out, machineView{
			name:     h.Name(),
			describe: m.Describe,
			tree:     func() fmt.Stringer { return m.Tree() },
		})
	}
	return out
}
