package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryanwaits/openpkg-sub004/core/cli"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}

	root := cli.NewRootCmd(version, a.setup)
	root.AddCommand(
		cli.NewSpecCmd(a.runSpec),
		cli.NewDiffCmd(a.runDiff),
		cli.NewCompareCmd(a.runCompare),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
