package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// IngestionConfig tunes the dataset ingestion runtime.
type IngestionConfig struct {
	Workers         int                 `mapstructure:"workers"`
	QueueSize       int                 `mapstructure:"queueSize"`
	InsertBatchSize int                 `mapstructure:"insertBatchSize"`
	RecoveryEvery   time.Duration       `mapstructure:"recoveryEvery"`
	RecoveryGrace   time.Duration       `mapstructure:"recoveryGrace"`
	StaleAfter      time.Duration       `mapstructure:"staleAfter"`
	ExtraAliases    map[string][]string `mapstructure:"extraAliases"`
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		Workers:         2,
		QueueSize:       64,
		InsertBatchSize: 500,
		RecoveryEvery:   30 * time.Second,
		RecoveryGrace:   10 * time.Second,
		StaleAfter:      30 * time.Minute,
		ExtraAliases:    map[string][]string{},
	}
}

type IngestionConfigHolder struct {
	current atomic.Value // holds IngestionConfig
}

// NewStaticIngestionConfigHolder returns a holder that never reloads.
func NewStaticIngestionConfigHolder(cfg IngestionConfig) *IngestionConfigHolder {
	holder := &IngestionConfigHolder{}
	holder.current.Store(cfg.withDefaults())
	return holder
}

func NewIngestionConfigHolder() (*IngestionConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("ingestion")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/oceandata")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OCEANDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultIngestionConfig()
	v.SetDefault("ingestion.workers", defaults.Workers)
	v.SetDefault("ingestion.queueSize", defaults.QueueSize)
	v.SetDefault("ingestion.insertBatchSize", defaults.InsertBatchSize)
	v.SetDefault("ingestion.recoveryEvery", defaults.RecoveryEvery)
	v.SetDefault("ingestion.recoveryGrace", defaults.RecoveryGrace)
	v.SetDefault("ingestion.staleAfter", defaults.StaleAfter)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	var cfg IngestionConfig
	if err := v.UnmarshalKey("ingestion", &cfg); err != nil {
		return nil, err
	}
	if err := validateIngestionConfig(cfg); err != nil {
		return nil, err
	}

	holder := &IngestionConfigHolder{}
	holder.current.Store(cfg.withDefaults())

	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated IngestionConfig
		if err := v.UnmarshalKey("ingestion", &updated); err != nil {
			log.Printf("[ingestion-config] reload failed: %v", err)
			return
		}
		if err := validateIngestionConfig(updated); err != nil {
			log.Printf("[ingestion-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated.withDefaults())
		log.Printf("[ingestion-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *IngestionConfigHolder) Get() IngestionConfig {
	if h == nil {
		return DefaultIngestionConfig()
	}
	cfg, ok := h.current.Load().(IngestionConfig)
	if !ok {
		return DefaultIngestionConfig()
	}
	return cfg
}

func (c IngestionConfig) withDefaults() IngestionConfig {
	defaults := DefaultIngestionConfig()
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	if c.InsertBatchSize <= 0 {
		c.InsertBatchSize = defaults.InsertBatchSize
	}
	if c.RecoveryEvery <= 0 {
		c.RecoveryEvery = defaults.RecoveryEvery
	}
	if c.RecoveryGrace < 0 {
		c.RecoveryGrace = defaults.RecoveryGrace
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.ExtraAliases == nil {
		c.ExtraAliases = map[string][]string{}
	}
	return c
}

func validateIngestionConfig(cfg IngestionConfig) error {
	if cfg.Workers < 0 {
		return errors.New("ingestion.workers cannot be negative")
	}
	if cfg.InsertBatchSize < 0 {
		return errors.New("ingestion.insertBatchSize cannot be negative")
	}
	for field, aliases := range cfg.ExtraAliases {
		if strings.TrimSpace(field) == "" {
			return errors.New("ingestion.extraAliases contains an empty field name")
		}
		for _, alias := range aliases {
			if strings.TrimSpace(alias) == "" {
				return errors.New("ingestion.extraAliases." + field + " contains an empty alias")
			}
		}
	}
	return nil
}
