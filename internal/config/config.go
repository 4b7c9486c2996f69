// Package config loads garmd's server configuration: listen address, the
// set of markets to open books for at startup, and the per-market builder
// options (outlier filter factor, stats tracking, diagnostic event ring
// depth). The teacher's own cmd/server/server.go hardcodes this; garmd
// generalizes it into a file (with environment-variable overrides) via
// viper, matching the config layer the wider example pack uses ahead of a
// TCP entrypoint.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"garm/internal/book"
)

// MarketConfig describes one market's startup builder options.
type MarketConfig struct {
	Exchange            string
	Instrument          string
	OutlierFilterFactor float64 // 0 disables the filter
	TrackStatsErrors    bool
	LastNEvents         int
}

// Market returns the book.Market identity this entry configures.
func (m MarketConfig) Market() book.Market {
	return book.Market{Exchange: m.Exchange, Instrument: m.Instrument}
}

// Build constructs the OrderBook this entry describes.
func (m MarketConfig) Build() (*book.OrderBook, error) {
	b := book.NewBuilder().WithMarket(m.Market()).WithStats(m.TrackStatsErrors)
	if m.OutlierFilterFactor > 0 {
		b = b.WithOutlierFilter(m.OutlierFilterFactor)
	}
	if m.LastNEvents > 0 {
		b = b.WithLastNEvents(m.LastNEvents)
	}
	return b.Build()
}

// Config is garmd's full startup configuration.
type Config struct {
	ListenAddress string
	Markets       []MarketConfig
}

// Load reads configuration from path (if non-empty) plus any GARM_-prefixed
// environment variables, falling back to sane single-market defaults when
// neither supplies a market list.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_address", ":7070")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var raw struct {
		ListenAddress string `mapstructure:"listen_address"`
		Markets       []struct {
			Exchange            string  `mapstructure:"exchange"`
			Instrument          string  `mapstructure:"instrument"`
			OutlierFilterFactor float64 `mapstructure:"outlier_filter_factor"`
			TrackStatsErrors    bool    `mapstructure:"track_stats_errors"`
			LastNEvents         int     `mapstructure:"last_n_events"`
		} `mapstructure:"markets"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg := Config{ListenAddress: raw.ListenAddress}
	for _, m := range raw.Markets {
		cfg.Markets = append(cfg.Markets, MarketConfig{
			Exchange:            m.Exchange,
			Instrument:          m.Instrument,
			OutlierFilterFactor: m.OutlierFilterFactor,
			TrackStatsErrors:    m.TrackStatsErrors,
			LastNEvents:         m.LastNEvents,
		})
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = []MarketConfig{{
			Exchange:            "default",
			Instrument:          "BTC-USD",
			OutlierFilterFactor: book.DefaultOutlierFactor,
			TrackStatsErrors:    true,
		}}
	}
	return cfg, nil
}
