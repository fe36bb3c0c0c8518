// Command euicc-gate enables or disables the eUICC package on an Android
// device according to its hardware SKU and Google services dependencies.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChrisB0-2/euicc-gate/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
