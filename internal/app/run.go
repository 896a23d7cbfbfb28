package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// GracePeriod bounds how long Run waits for the runner after a signal.
const GracePeriod = 15 * time.Second

type Runner func(ctx context.Context) error

// Run executes the runner until it returns or the process gets SIGINT/SIGTERM
// and returns the exit code.
func Run(serviceName string, logger zerolog.Logger, run Runner) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runUntil(ctx, serviceName, logger, run, GracePeriod)
}

func runUntil(ctx context.Context, serviceName string, logger zerolog.Logger, run Runner, grace time.Duration) int {
	logger = logger.With().Str("service", serviceName).Logger()
	logger.Info().Msg("starting")

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Dur("grace", grace).Msg("shutting down")
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error().Err(err).Msg("shutdown failed")
				return 1
			}
			logger.Info().Msg("stopped")
			return 0
		case <-time.After(grace):
			logger.Warn().Msg("grace period expired")
			return 1
		}
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("failed")
			return 1
		}
		logger.Info().Msg("stopped")
		return 0
	}
}
