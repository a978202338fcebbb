// Package ops loads and resolves the runtime configuration.
package ops

import (
	"os"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"main/internal/account"
	"main/internal/feed"
	"main/internal/ladder"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/trader"
)

// FileConfig mirrors the YAML config layout.
type FileConfig struct {
	Vendor string       `yaml:"vendor"`
	Feed   FeedConfig   `yaml:"feed"`
	Broker BrokerConfig `yaml:"broker"`
	Trader TraderConfig `yaml:"trader"`
	Ladder LadderConfig `yaml:"ladder"`
	PnL    PnLConfig    `yaml:"pnl"`
	Notify NotifyConfig `yaml:"notify"`
	Store  StoreConfig  `yaml:"store"`
	State  StateConfig  `yaml:"state"`
}

// PnLConfig seeds the shared-cash ledger.
type PnLConfig struct {
	InitialCash float64 `yaml:"initialCash"`
}

// FeedConfig describes the market feed connection.
type FeedConfig struct {
	URL            string   `yaml:"url"`
	Conditions     []string `yaml:"conditions"`
	DedupTTLSec    int      `yaml:"dedupTtlSec"`
	HeartbeatSec   int      `yaml:"heartbeatSec"`
	ConditionsPath string   `yaml:"conditionsPath"`
}

// BrokerConfig describes the order submission side.
type BrokerConfig struct {
	BaseURL string          `yaml:"baseUrl"`
	FeeBps  float64         `yaml:"feeBps"`
	Workers int             `yaml:"workers"`
	Accounts []AccountEntry `yaml:"accounts"`
}

// AccountEntry is one configured trading account. Token may be left empty
// and supplied via environment instead.
type AccountEntry struct {
	Alias   string `yaml:"alias"`
	Account string `yaml:"account"`
	Token   string `yaml:"token"`
	Enabled *bool  `yaml:"enabled"`
}

// TraderConfig describes signal handling behavior.
type TraderConfig struct {
	Strategy    string  `yaml:"strategy"`
	FixedQty    int64   `yaml:"fixedQty"`
	UnitAmount  float64 `yaml:"unitAmount"`
	CooldownSec int     `yaml:"cooldownSec"`
	DryRun      bool    `yaml:"dryRun"`
	LadderBuy   bool    `yaml:"ladderBuy"`
	LadderSell  bool    `yaml:"ladderSell"`
}

// LadderConfig describes slicing of ladder orders.
type LadderConfig struct {
	SliceCount int     `yaml:"sliceCount"`
	MinQty     int64   `yaml:"minQty"`
	Tick       float64 `yaml:"tick"`
	DelayMs    int     `yaml:"delayMs"`
}

// NotifyConfig describes outbound notifications.
type NotifyConfig struct {
	DiscordWebhook string `yaml:"discordWebhook"`
}

// StoreConfig describes the optional trade journal database.
type StoreConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// StateConfig describes local state persistence.
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Vendor      enum.Vendor
	Feed        feed.Option
	Trader      trader.Config
	Broker      BrokerConfig
	Accounts    []model.AccountContext
	InitialCash float64
	Notify      NotifyConfig
	Store       StoreConfig
	StateDir    string
}

// Enabled returns whether the store section is filled in.
func (c StoreConfig) Enabled() bool {
	return c.Host != "" && c.Database != ""
}

// Load reads a YAML config file, applies environment overrides and resolves
// it into runtime options.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}
	applyEnv(&cfg)
	return resolve(cfg)
}

// applyEnv lets deploy environments override the file without editing it.
// Secrets in particular should come from the environment.
func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("AUTOTRADER_VENDOR"); v != "" {
		cfg.Vendor = v
	}
	if v := os.Getenv("AUTOTRADER_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("AUTOTRADER_BROKER_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("AUTOTRADER_DISCORD_WEBHOOK"); v != "" {
		cfg.Notify.DiscordWebhook = v
	}
	if v := os.Getenv("AUTOTRADER_DB_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("AUTOTRADER_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trader.DryRun = b
		}
	}
}

func resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Vendor == "" {
		cfg.Vendor = enum.VendorSimulator.String()
	}
	vendor := enum.ParseVendor(cfg.Vendor)
	if !vendor.IsAvailable() {
		return Loaded{}, errors.Errorf("ops: unknown vendor %q", cfg.Vendor)
	}
	if vendor == enum.VendorKiwoom && cfg.Broker.BaseURL == "" {
		return Loaded{}, errors.New("ops: live vendor requires broker.baseUrl")
	}

	accounts, err := resolveAccounts(cfg.Broker.Accounts)
	if err != nil {
		return Loaded{}, err
	}

	tc := trader.Config{
		Strategy:   cfg.Trader.Strategy,
		FixedQty:   cfg.Trader.FixedQty,
		UnitAmount: cfg.Trader.UnitAmount,
		Cooldown:   time.Duration(cfg.Trader.CooldownSec) * time.Second,
		DryRun:     cfg.Trader.DryRun,
		LadderBuy:  cfg.Trader.LadderBuy,
		LadderSell: cfg.Trader.LadderSell,
		Ladder: ladder.Config{
			SliceCount: cfg.Ladder.SliceCount,
			MinQty:     cfg.Ladder.MinQty,
			Tick:       cfg.Ladder.Tick,
			Delay:      time.Duration(cfg.Ladder.DelayMs) * time.Millisecond,
		},
	}
	if tc.Strategy == "" {
		tc.Strategy = "default"
	}
	if tc.FixedQty <= 0 && tc.UnitAmount <= 0 {
		return Loaded{}, errors.New("ops: trader needs fixedQty or unitAmount")
	}

	fo := feed.Option{
		URL:            cfg.Feed.URL,
		Conditions:     cfg.Feed.Conditions,
		ConditionsPath: cfg.Feed.ConditionsPath,
		DedupTTL:       time.Duration(cfg.Feed.DedupTTLSec) * time.Second,
		Heartbeat:      time.Duration(cfg.Feed.HeartbeatSec) * time.Second,
	}
	if vendor == enum.VendorKiwoom && fo.URL == "" {
		return Loaded{}, errors.New("ops: live vendor requires feed.url")
	}

	stateDir := cfg.State.Dir
	if stateDir == "" {
		stateDir = "state"
	}

	initialCash := cfg.PnL.InitialCash
	if initialCash <= 0 {
		initialCash = 10_000_000
	}

	return Loaded{
		Vendor:      vendor,
		Feed:        fo,
		Trader:      tc,
		Broker:      cfg.Broker,
		Accounts:    accounts,
		InitialCash: initialCash,
		Notify:      cfg.Notify,
		Store:       cfg.Store,
		StateDir:    stateDir,
	}, nil
}

// resolveAccounts merges file entries with environment-provided tokens.
// File entries win; the environment backfills missing tokens and supplies
// accounts the file does not know about.
func resolveAccounts(entries []AccountEntry) ([]model.AccountContext, error) {
	envAccounts := account.Resolver{}.Resolve()
	envByAccount := make(map[string]model.AccountContext, len(envAccounts))
	for _, a := range envAccounts {
		envByAccount[a.Account] = a
	}

	out := make([]model.AccountContext, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Account == "" {
			return nil, errors.New("ops: account entry missing account number")
		}
		if _, dup := seen[e.Account]; dup {
			return nil, errors.Errorf("ops: duplicate account %s", e.Account)
		}
		seen[e.Account] = struct{}{}

		ctx := model.AccountContext{
			Alias:   e.Alias,
			Account: e.Account,
			Token:   e.Token,
			Enabled: e.Enabled == nil || *e.Enabled,
		}
		if ctx.Token == "" {
			if env, ok := envByAccount[e.Account]; ok {
				ctx.Token = env.Token
			}
		}
		out = append(out, ctx)
	}

	for _, a := range envAccounts {
		if _, dup := seen[a.Account]; dup {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
