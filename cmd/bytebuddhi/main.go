// Command bytebuddhi is a coding assistant for the terminal.
//
//	bytebuddhi ask "how do I reverse a slice?" --thread t1
//	bytebuddhi resume t1 "and in place?"
//	bytebuddhi history t1 --limit 5
//	bytebuddhi forget t1
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
