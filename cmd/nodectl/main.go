package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cybercade/bot/internal/nodectl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := nodectl.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
