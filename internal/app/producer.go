package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"ratehub/internal/api"
	"ratehub/internal/broker"
	"ratehub/internal/domain"
	"ratehub/internal/outbox"
	"ratehub/internal/sequencer"
	"ratehub/internal/service"
	"ratehub/internal/storage"
)

// RunProducer runs the ingestion role: the rates API, the sequencer, and
// the outbox reliability engine publishing onto the broker.
func (a *App) RunProducer(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	store := storage.NewStore(pool)
	defer store.Close()

	publisher := broker.NewRatePublisher(a.Config.Kafka, a.Logger)
	defer publisher.Close()

	registry, err := outbox.NewRegistry(publisher)
	if err != nil {
		return err
	}
	if err := registry.Require(domain.EventTypeRate); err != nil {
		return err
	}

	seq := sequencer.New(store, a.Logger)
	writer := outbox.NewWriter(store, a.Logger)
	rates := service.NewRateService(store, seq, writer, a.Config.Source(), a.Logger)

	processor := outbox.NewProcessor(registry, store, a.Config.Outbox.StuckThreshold, a.Logger)
	dispatcher := outbox.NewDispatcher(processor, a.Config.Outbox.DispatchWorkers, a.Logger)
	poller := outbox.NewPoller(store, dispatcher, a.Config.Outbox.BatchSize, a.Config.Outbox.PollInterval, a.Logger)
	watchdog := outbox.NewWatchdog(store, a.Config.Outbox.WatchdogInterval, a.Config.Outbox.StuckThreshold, a.Logger)
	monitor := outbox.NewMonitor(store, a.Config.Outbox.StatsInterval, a.Logger)

	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("outbox poller terminated")
		}
	}()
	go func() {
		if err := watchdog.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("outbox watchdog terminated")
		}
	}()
	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("outbox monitor terminated")
		}
	}()

	ingest := api.NewIngestHandler(rates, a.Logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rates", ingest.Create)

	a.Logger.Info().Msg("starting producer")
	err = a.serveHTTP(ctx, &http.Server{Addr: a.Config.HTTP.IngestAddr, Handler: mux})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.Logger.Info().Msg("producer stopped")
	return nil
}
