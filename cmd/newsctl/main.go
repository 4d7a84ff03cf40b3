// Command newsctl runs administrative operations against the newsdesk database.
// It opens the bbolt file directly, so the server must not hold it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "newsctl: %v\n", err)
		os.Exit(1)
	}
}
