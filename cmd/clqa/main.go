// Command clqa finds, reads and computes CoLoRe QA results.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/clqa/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &cli.RootOptions{}
	cmd := cli.NewRootCommandWithOptions(opts)
	cmd.SetContext(ctx)

	code := cli.Execute(cmd, opts)
	stop()
	os.Exit(code)
}
