package main

import (
	"context"
	"fmt"
	"os"

	"github.com/romariotrain/holograma/internal/app"
	"github.com/romariotrain/holograma/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.IsDevelopment())

	os.Exit(app.Run("articles", logger, func(ctx context.Context) error {
		return run(ctx, cfg, logger)
	}))
}
