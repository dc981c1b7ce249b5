package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"swipedesk/internal/apperr"
	"swipedesk/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := cli.NewApp(os.Stdin, os.Stdout, os.Stderr)
	err := cli.NewRootCmd(app).ExecuteContext(ctx)
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperr.Message(err))
		os.Exit(1)
	}
}
