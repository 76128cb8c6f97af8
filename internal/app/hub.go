package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"ratehub/internal/api"
	"ratehub/internal/broker"
	"ratehub/internal/fanout"
	"ratehub/internal/ratestore"
	"ratehub/internal/ws"
)

// RunHub runs the distribution role: the broker consumer feeding the rate
// store, cluster fanout, the WebSocket endpoint, and the snapshot API.
func (a *App) RunHub(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	defer client.Close()

	locks := ratestore.NewPairLock(client, a.Config.Rates.PairLockTTL)
	store := ratestore.NewStore(client, locks, a.Config.Rates.SnapshotTTL, a.Config.Rates.InvalidRefreshTTL, a.Logger)

	registry := fanout.NewRegistry(a.Config.App.InstanceName, a.Logger)
	broadcaster := fanout.NewBroadcaster(registry, a.Logger)
	clusterPub := fanout.NewClusterPublisher(client, a.Logger)
	listener := fanout.NewClusterListener(client, broadcaster, a.Logger)

	consumer := broker.NewConsumer(a.Config.Kafka, store, clusterPub, a.Logger)
	defer consumer.Close()

	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("cluster listener terminated")
		}
	}()
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("rate consumer terminated")
		}
	}()

	snapshots := api.NewSnapshotHandler(store, a.Logger)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rates", snapshots.List)
	mux.HandleFunc("GET /rates/{base}/{quote}", snapshots.Find)
	mux.Handle("GET /ws", ws.NewHandler(registry, a.Logger))

	a.Logger.Info().Msg("starting hub")
	err := a.serveHTTP(ctx, &http.Server{Addr: a.Config.HTTP.HubAddr, Handler: mux})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.Logger.Info().Msg("hub stopped")
	return nil
}
