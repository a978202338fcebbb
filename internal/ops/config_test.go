package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadResolvesDefaults(t *testing.T) {
	path := writeConfig(t, `
trader:
  fixedQty: 10
`)
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, enum.VendorSimulator, loaded.Vendor)
	assert.Equal(t, "default", loaded.Trader.Strategy)
	assert.Equal(t, int64(10), loaded.Trader.FixedQty)
	assert.Equal(t, "state", loaded.StateDir)
	assert.False(t, loaded.Store.Enabled())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
vendor: kiwoom
feed:
  url: wss://api.example.com:10000/api/dostk/websocket
  conditions: ["0", "7"]
  dedupTtlSec: 45
broker:
  baseUrl: https://api.example.com
  feeBps: 1.5
  workers: 8
  accounts:
    - alias: main
      account: "12345678"
      token: token-abcdef123456
    - alias: sub
      account: "87654321"
      token: token-fedcba654321
      enabled: false
trader:
  strategy: cond-breakout
  unitAmount: 1000000
  cooldownSec: 30
  ladderBuy: true
ladder:
  sliceCount: 4
  minQty: 1
  tick: 10
  delayMs: 200
store:
  host: db.internal
  database: trader
`)
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, enum.VendorKiwoom, loaded.Vendor)
	assert.Equal(t, []string{"0", "7"}, loaded.Feed.Conditions)
	assert.Equal(t, 45*time.Second, loaded.Feed.DedupTTL)
	assert.Equal(t, "cond-breakout", loaded.Trader.Strategy)
	assert.Equal(t, 30*time.Second, loaded.Trader.Cooldown)
	assert.True(t, loaded.Trader.LadderBuy)
	assert.Equal(t, 4, loaded.Trader.Ladder.SliceCount)
	assert.Equal(t, 200*time.Millisecond, loaded.Trader.Ladder.Delay)
	assert.True(t, loaded.Store.Enabled())

	require.Len(t, loaded.Accounts, 2)
	assert.True(t, loaded.Accounts[0].Enabled)
	assert.False(t, loaded.Accounts[1].Enabled)
}

func TestLoadRejectsLiveWithoutEndpoints(t *testing.T) {
	path := writeConfig(t, `
vendor: kiwoom
trader:
  fixedQty: 1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingSizing(t *testing.T) {
	path := writeConfig(t, `
vendor: simulator
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateAccounts(t *testing.T) {
	path := writeConfig(t, `
broker:
  accounts:
    - {alias: a, account: "1", token: t1}
    - {alias: b, account: "1", token: t2}
trader:
  fixedQty: 1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOTRADER_DRY_RUN", "true")
	t.Setenv("AUTOTRADER_FEED_URL", "wss://override.example.com/ws")

	path := writeConfig(t, `
trader:
  fixedQty: 1
  dryRun: false
`)
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Trader.DryRun)
	assert.Equal(t, "wss://override.example.com/ws", loaded.Feed.URL)
}

func TestEnvBackfillsToken(t *testing.T) {
	t.Setenv("AUTOTRADER_ACCOUNTS", "env:12345678:env-token-123456,extra:99999999:extra-token-654321")

	path := writeConfig(t, `
broker:
  accounts:
    - alias: main
      account: "12345678"
trader:
  fixedQty: 1
`)
	loaded, err := Load(path)
	require.NoError(t, err)

	require.Len(t, loaded.Accounts, 2)
	assert.Equal(t, "main", loaded.Accounts[0].Alias)
	assert.Equal(t, "env-token-123456", loaded.Accounts[0].Token)
	assert.Equal(t, "99999999", loaded.Accounts[1].Account)
}
