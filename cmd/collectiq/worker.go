package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/collectiq/collectiq/internal/ops"
	"github.com/collectiq/collectiq/internal/pipeline"
)

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opsServer := ops.NewServer(a.cfg.HTTP.Addr, version, a.pricer, a.kpi)
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()

	trigger := pipeline.NewTrigger(a.bus, a.orchestrator, a.kpi, a.cfg.Pipeline.AutoTriggerRevalue)
	log.Info().Str("channel", a.cfg.Events.Channel).Msg("worker consuming card created events")

	err = trigger.Listen(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown incomplete")
	}
	log.Info().Msg("worker stopped")
	return nil
}
