// Command garmd is the garm order book server: it loads a market
// configuration, opens one OrderBook per configured market, and serves the
// binary event feed described by internal/transport. Structurally this is
// the teacher's cmd/server/server.go (signal-driven shutdown, one engine
// wired into one net.Server) generalized from a single hardcoded asset
// class to an arbitrary configured set of markets.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"garm/internal/config"
	"garm/internal/market"
	"garm/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a garmd YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	directory := market.NewDirectory()
	for _, m := range cfg.Markets {
		ob, err := m.Build()
		if err != nil {
			log.Fatal().Err(err).Str("market", m.Market().String()).Msg("failed to build order book")
		}
		directory.Insert(ob)
		log.Info().Str("market", m.Market().String()).Msg("order book opened")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := transport.New(cfg.ListenAddress, directory)
	log.Info().Str("address", cfg.ListenAddress).Int("markets", directory.Len()).Msg("starting garmd")

	go srv.Run(ctx)
	<-ctx.Done()
	srv.Shutdown()
}
