package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingConfig is the calculation policy read from pricing.yml.
type PricingConfig struct {
	TaxPrecision       int32             `mapstructure:"taxPrecision"`
	ProrationPrecision int32             `mapstructure:"prorationPrecision"`
	MaxTaxLevels       int               `mapstructure:"maxTaxLevels"`
	StaleRateAfter     time.Duration     `mapstructure:"staleRateAfter"`
	CascadeOverrides   map[string]bool   `mapstructure:"cascadeOverrides"`
	Description        DescriptionConfig `mapstructure:"description"`
}

// DescriptionConfig overrides line label rendering.
type DescriptionConfig struct {
	NestingGlyph string            `mapstructure:"nestingGlyph"`
	DateLayout   string            `mapstructure:"dateLayout"`
	Templates    map[string]string `mapstructure:"templates"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		TaxPrecision:       4,
		ProrationPrecision: 2,
		MaxTaxLevels:       2,
		StaleRateAfter:     24 * time.Hour,
		Description: DescriptionConfig{
			NestingGlyph: "└ ",
			DateLayout:   "01/02/2006",
		},
	}
}

// PricingConfigHolder serves the latest valid PricingConfig. Edits to the
// file are picked up without a restart; invalid edits are ignored.
type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewPricingConfigHolder reads pricing.yml from cfg.PricingConfigDir or the
// default search paths, falling back to defaults when no file exists.
func NewPricingConfigHolder(cfg Config, log *zap.Logger) (*PricingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.pricing")

	v := viper.New()
	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	if cfg.PricingConfigDir != "" {
		v.AddConfigPath(cfg.PricingConfigDir)
	}
	v.AddConfigPath("/etc/invoicecalc")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOICECALC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.taxPrecision", defaults.TaxPrecision)
	v.SetDefault("pricing.prorationPrecision", defaults.ProrationPrecision)
	v.SetDefault("pricing.maxTaxLevels", defaults.MaxTaxLevels)
	v.SetDefault("pricing.staleRateAfter", defaults.StaleRateAfter)
	v.SetDefault("pricing.description.nestingGlyph", defaults.Description.NestingGlyph)
	v.SetDefault("pricing.description.dateLayout", defaults.Description.DateLayout)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
		log.Info("pricing.yml not found, using defaults")
	}

	current, err := decodePricingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(current)

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodePricingConfig(v)
			if err != nil {
				log.Warn("invalid pricing config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("pricing config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

// NewStaticPricingConfigHolder serves cfg without watching any file.
func NewStaticPricingConfigHolder(cfg PricingConfig) (*PricingConfigHolder, error) {
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func decodePricingConfig(v *viper.Viper) (PricingConfig, error) {
	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return PricingConfig{}, err
	}
	cfg.CascadeOverrides = normalizeOverrides(cfg.CascadeOverrides)
	if err := validatePricingConfig(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

// normalizeOverrides upper-cases jurisdiction keys. Viper lower-cases map
// keys when it reads YAML.
func normalizeOverrides(in map[string]bool) map[string]bool {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.TaxPrecision < 2 || cfg.TaxPrecision > 10 {
		return fmt.Errorf("pricing.taxPrecision must be between 2 and 10, got %d", cfg.TaxPrecision)
	}
	if cfg.ProrationPrecision < 0 || cfg.ProrationPrecision > cfg.TaxPrecision {
		return fmt.Errorf("pricing.prorationPrecision must be between 0 and taxPrecision, got %d", cfg.ProrationPrecision)
	}
	if cfg.MaxTaxLevels < 1 {
		return errors.New("pricing.maxTaxLevels must be at least 1")
	}
	if cfg.StaleRateAfter <= 0 {
		return errors.New("pricing.staleRateAfter must be positive")
	}
	for key, tmpl := range cfg.Description.Templates {
		if strings.TrimSpace(tmpl) == "" {
			return fmt.Errorf("pricing.description.templates.%s cannot be empty", key)
		}
	}
	return nil
}
