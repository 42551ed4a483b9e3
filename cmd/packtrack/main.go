package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"packtrack/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RunApp(ctx, cfg, defaultAppFactories()); err != nil && err != context.Canceled {
		panic(err)
	}
}
