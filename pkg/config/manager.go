package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads an engine configuration from a YAML or JSON file. An empty path
// yields the defaults. QRE_* environment variables override file values.
func Load(path string) (*EngineConfig, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}
	return decode(v)
}

// Watch loads path and calls onChange with every successfully re-read and
// validated configuration. Invalid edits are reported through onError and
// otherwise ignored.
func Watch(path string, onChange func(*EngineConfig), onError func(error)) (*EngineConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reloading %s: %w", evt.Name, err))
			}
			return
		}
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	def := DefaultEngineConfig()
	v.SetDefault("initial_capital", def.InitialCapital)
	v.SetDefault("risk_profile", def.RiskProfile)
	v.SetDefault("costs.commission_rate", def.Costs.CommissionRate)
	v.SetDefault("costs.slippage_bps", def.Costs.SlippageBps)
	v.SetDefault("risk_free_rate", def.RiskFreeRate)
	v.SetDefault("periods_per_year", def.PeriodsPerYear)
	v.SetDefault("mode", string(def.Mode))
	v.SetDefault("results_dir", def.ResultsDir)
	v.SetDefault("log_dir", def.LogDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*EngineConfig, error) {
	var cfg EngineConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
