// Package config loads the configuration of an example generation run, from a config file (YAML, JSON
// or TOML) and ALBERTDATA_* environment variables.
package config

import (
	"runtime"
	"strings"

	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/albertdata/hub"
	"github.com/gomlx/albertdata/pipeline"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/gomlx/albertdata/tokenizers/normalize"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config values, e.g.
// ALBERTDATA_TOKENIZER_MODEL_PATH for "tokenizer.model_path".
const EnvPrefix = "ALBERTDATA"

// Output formats.
const (
	FormatParquet     = pipeline.FormatParquet
	FormatSafetensors = pipeline.FormatSafetensors
)

// Config stores all configuration of a run.
type Config struct {
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Hub       HubConfig       `mapstructure:"hub"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Example   ExampleConfig   `mapstructure:"example"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Output    OutputConfig    `mapstructure:"output"`
}

// TokenizerConfig selects the subword encoder.
type TokenizerConfig struct {
	Type      string `mapstructure:"type"`
	ModelPath string `mapstructure:"model_path"`
	Repo      string `mapstructure:"repo"`
	File      string `mapstructure:"file"`
}

// HubConfig configures downloads from HuggingFace.
type HubConfig struct {
	CacheDir  string `mapstructure:"cache_dir"`
	AuthToken string `mapstructure:"auth_token"`
	Revision  string `mapstructure:"revision"`
}

// NormalizeConfig configures text normalization before encoding.
type NormalizeConfig struct {
	NFKC         bool `mapstructure:"nfkc"`
	UnicodeLower bool `mapstructure:"unicode_lower"`
}

// ExampleConfig configures example construction.
type ExampleConfig struct {
	MaxLen      int       `mapstructure:"max_len"`
	MaxLabel    int       `mapstructure:"max_label"`
	MaxOffset   int       `mapstructure:"max_offset"`
	MinThirdLen int       `mapstructure:"min_third_len"`
	SpanWeights []float64 `mapstructure:"span_weights"`
	MaskProb    float64   `mapstructure:"mask_prob"`
	RandomProb  float64   `mapstructure:"random_prob"`
}

// PipelineConfig configures the workers.
type PipelineConfig struct {
	Workers   int    `mapstructure:"workers"`
	Seed      uint64 `mapstructure:"seed"`
	BatchSize int    `mapstructure:"batch_size"`
}

// OutputConfig configures where and how examples are written.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

// SetDefaults registers the default value of every key in v.
func SetDefaults(v *viper.Viper) {
	defaults := albert.DefaultConfig()
	v.SetDefault("tokenizer.type", "sentencepiece")
	v.SetDefault("tokenizer.model_path", "")
	v.SetDefault("tokenizer.repo", "")
	v.SetDefault("tokenizer.file", "")
	v.SetDefault("hub.cache_dir", "")
	v.SetDefault("hub.auth_token", "")
	v.SetDefault("hub.revision", "main")
	v.SetDefault("normalize.nfkc", false)
	v.SetDefault("normalize.unicode_lower", false)
	v.SetDefault("example.max_len", defaults.MaxLen)
	v.SetDefault("example.max_label", defaults.MaxLabel)
	v.SetDefault("example.max_offset", defaults.MaxOffset)
	v.SetDefault("example.min_third_len", defaults.MinThirdLen)
	v.SetDefault("example.span_weights", defaults.SpanWeights)
	v.SetDefault("example.mask_prob", defaults.Corruption.MaskProb)
	v.SetDefault("example.random_prob", defaults.Corruption.RandomProb)
	v.SetDefault("pipeline.workers", runtime.NumCPU())
	v.SetDefault("pipeline.seed", 0)
	v.SetDefault("pipeline.batch_size", 1024)
	v.SetDefault("output.format", FormatParquet)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.prefix", "examples")
}

// New returns a viper instance with the defaults and environment bindings set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configPath (if not empty) into v and decodes the result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %q", configPath)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that can't be checked by the components themselves.
func (c *Config) Validate() error {
	switch c.Tokenizer.Type {
	case "sentencepiece", "hf", "wordpiece":
	default:
		return errors.Errorf("tokenizer.type must be \"sentencepiece\", \"hf\" or \"wordpiece\", got %q", c.Tokenizer.Type)
	}
	if c.Tokenizer.ModelPath == "" && c.Tokenizer.Repo == "" {
		return errors.New("one of tokenizer.model_path or tokenizer.repo must be set")
	}
	switch c.Output.Format {
	case FormatParquet, FormatSafetensors:
	default:
		return errors.Errorf("output.format must be %q or %q, got %q", FormatParquet, FormatSafetensors, c.Output.Format)
	}
	if c.Pipeline.Workers < 1 {
		return errors.Errorf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.BatchSize < 1 {
		return errors.Errorf("pipeline.batch_size must be >= 1, got %d", c.Pipeline.BatchSize)
	}
	return errors.WithMessage(c.AlbertConfig().Validate(), "invalid example config")
}

// AlbertConfig returns the example construction configuration.
func (c *Config) AlbertConfig() albert.Config {
	cfg := albert.DefaultConfig()
	cfg.MaxLen = c.Example.MaxLen
	cfg.MaxLabel = c.Example.MaxLabel
	cfg.MaxOffset = c.Example.MaxOffset
	cfg.MinThirdLen = c.Example.MinThirdLen
	if len(c.Example.SpanWeights) > 0 {
		cfg.SpanWeights = append([]float64(nil), c.Example.SpanWeights...)
	}
	cfg.Corruption.MaskProb = c.Example.MaskProb
	cfg.Corruption.RandomProb = c.Example.RandomProb
	return cfg
}

// TokenizerConfig returns the configuration of the tokenizer.
func (c *Config) TokenizerConfig() *api.Config {
	return &api.Config{
		Type:      c.Tokenizer.Type,
		ModelPath: c.Tokenizer.ModelPath,
		Repo:      c.Tokenizer.Repo,
		File:      c.Tokenizer.File,
	}
}

// PipelineOptions returns the options of the example generation pipeline.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Albert:     c.AlbertConfig(),
		Normalizer: c.Normalizer(),
		Workers:    c.Pipeline.Workers,
		Seed:       c.Pipeline.Seed,
		BatchSize:  c.Pipeline.BatchSize,
	}
}

// Normalizer returns the text normalizer.
func (c *Config) Normalizer() normalize.Normalizer {
	return normalize.Normalizer{NFKC: c.Normalize.NFKC, UnicodeLower: c.Normalize.UnicodeLower}
}

// Repo returns the HuggingFace repository to download the tokenizer from, or nil if tokenizer.repo is not set.
func (c *Config) Repo() *hub.Repo {
	if c.Tokenizer.Repo == "" {
		return nil
	}
	repo := hub.New(c.Tokenizer.Repo)
	if c.Hub.CacheDir != "" {
		repo = repo.WithCacheDir(c.Hub.CacheDir)
	}
	if c.Hub.AuthToken != "" {
		repo = repo.WithAuth(c.Hub.AuthToken)
	}
	if c.Hub.Revision != "" {
		repo = repo.WithRevision(c.Hub.Revision)
	}
	return repo
}
