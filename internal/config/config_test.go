package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoMarketsConfigured(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddress)
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "BTC-USD", cfg.Markets[0].Instrument)
}

func TestLoad_ReadsMarketsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garmd.yaml")
	contents := `
listen_address: ":9090"
markets:
  - exchange: coinbase
    instrument: ETH-USD
    outlier_filter_factor: 0.25
    track_stats_errors: true
    last_n_events: 50
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddress)
	require.Len(t, cfg.Markets, 1)
	m := cfg.Markets[0]
	assert.Equal(t, "coinbase", m.Exchange)
	assert.Equal(t, "ETH-USD", m.Instrument)
	assert.Equal(t, 0.25, m.OutlierFilterFactor)
	assert.Equal(t, 50, m.LastNEvents)

	ob, err := m.Build()
	require.NoError(t, err)
	assert.NotNil(t, ob.OutlierFilter())
}
