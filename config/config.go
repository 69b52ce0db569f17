// Package config 基于 koanf 加载 tourkit 配置：默认值 -> YAML 文件 -> 环境变量 -> 校验。
package config

import (
	"fmt"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/tourkit/pkg/logging"
)

// Config 是进程的完整配置
type Config struct {
	Log           logging.Config      `koanf:"log" yaml:"log"`
	Server        ServerConfig        `koanf:"server" yaml:"server"`
	Store         StoreConfig         `koanf:"store" yaml:"store"`
	Collaborative CollaborativeConfig `koanf:"collaborative" yaml:"collaborative"`
	Lexical       LexicalConfig       `koanf:"lexical" yaml:"lexical"`
	Ranking       RankingConfig       `koanf:"ranking" yaml:"ranking"`
	Serving       ServingConfig       `koanf:"serving" yaml:"serving"`
	Catalog       CatalogConfig       `koanf:"catalog" yaml:"catalog"`
}

type ServerConfig struct {
	Addr               string        `koanf:"addr" yaml:"addr" validate:"required"`
	ReadTimeout        time.Duration `koanf:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout       time.Duration `koanf:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute" yaml:"rate_limit_per_minute" validate:"gte=0"`
}

type StoreConfig struct {
	Backend   string       `koanf:"backend" yaml:"backend" validate:"oneof=memory redis badger"`
	KeyPrefix string       `koanf:"key_prefix" yaml:"key_prefix" validate:"required"`
	Redis     RedisConfig  `koanf:"redis" yaml:"redis"`
	Badger    BadgerConfig `koanf:"badger" yaml:"badger"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" yaml:"addr"`
	Password string `koanf:"password" yaml:"password"`
	DB       int    `koanf:"db" yaml:"db" validate:"gte=0"`
}

type BadgerConfig struct {
	Path     string `koanf:"path" yaml:"path"`
	InMemory bool   `koanf:"in_memory" yaml:"in_memory"`
}

// CollaborativeConfig 是隐因子模型的训练参数
type CollaborativeConfig struct {
	Factors        int     `koanf:"factors" yaml:"factors" validate:"gt=0"`
	Epochs         int     `koanf:"epochs" yaml:"epochs" validate:"gt=0"`
	LearningRate   float64 `koanf:"learning_rate" yaml:"learning_rate" validate:"gt=0"`
	Regularization float64 `koanf:"regularization" yaml:"regularization" validate:"gte=0"`
	InitStd        float64 `koanf:"init_std" yaml:"init_std" validate:"gt=0"`
	Seed           uint64  `koanf:"seed" yaml:"seed"`
	// Holdout 留出评估的比例，0 表示不评估
	Holdout float64 `koanf:"holdout" yaml:"holdout" validate:"gte=0,lt=1"`
}

type LexicalConfig struct {
	K1 float64 `koanf:"k1" yaml:"k1" validate:"gt=0"`
	B  float64 `koanf:"b" yaml:"b" validate:"gte=0,lte=1"`
}

// RankingConfig 是排序模型的训练参数；Model 取 gbdt 或 lr
type RankingConfig struct {
	Model              string  `koanf:"model" yaml:"model" validate:"oneof=gbdt lr"`
	Rounds             int     `koanf:"rounds" yaml:"rounds" validate:"gt=0"`
	LearningRate       float64 `koanf:"learning_rate" yaml:"learning_rate" validate:"gt=0,lte=1"`
	MaxDepth           int     `koanf:"max_depth" yaml:"max_depth" validate:"gt=0"`
	MinSamplesLeaf     int     `koanf:"min_samples_leaf" yaml:"min_samples_leaf" validate:"gt=0"`
	Patience           int     `koanf:"patience" yaml:"patience" validate:"gt=0"`
	ValidationFraction float64 `koanf:"validation_fraction" yaml:"validation_fraction" validate:"gte=0,lt=1"`
	Regularization     float64 `koanf:"regularization" yaml:"regularization" validate:"gte=0"`
	Seed               uint64  `koanf:"seed" yaml:"seed"`
}

type ServingConfig struct {
	DefaultTopN int `koanf:"default_top_n" yaml:"default_top_n" validate:"gt=0"`
	MaxTopN     int `koanf:"max_top_n" yaml:"max_top_n" validate:"gtefield=DefaultTopN"`
	// RerankDepth 搜索两阶段排序时送入排序模型的词法候选数
	RerankDepth int `koanf:"rerank_depth" yaml:"rerank_depth" validate:"gt=0"`
}

// CatalogConfig.Policy 是判定一条商户记录是否为游览的 CEL 表达式
type CatalogConfig struct {
	Policy string `koanf:"policy" yaml:"policy"`
}

// DefaultPolicy 按类目文本子串匹配固定关键词
const DefaultPolicy = `["Tours", "Active Life", "Arts & Entertainment", "Local Flavor"].exists(k, categories_text.contains(k))`

// Default 返回全部默认值
func Default() Config {
	return Config{
		Log: logging.DefaultConfig(),
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       10 * time.Second,
			RateLimitPerMinute: 600,
		},
		Store: StoreConfig{
			Backend:   "badger",
			KeyPrefix: "tourkit",
			Redis:     RedisConfig{Addr: "localhost:6379"},
			Badger:    BadgerConfig{Path: "data/snapshots"},
		},
		Collaborative: CollaborativeConfig{
			Factors:        100,
			Epochs:         20,
			LearningRate:   0.005,
			Regularization: 0.02,
			InitStd:        0.1,
			Seed:           42,
		},
		Lexical: LexicalConfig{K1: 1.5, B: 0.75},
		Ranking: RankingConfig{
			Model:              "gbdt",
			Rounds:             100,
			LearningRate:       0.1,
			MaxDepth:           3,
			MinSamplesLeaf:     20,
			Patience:           10,
			ValidationFraction: 0.2,
			Regularization:     1.0,
			Seed:               42,
		},
		Serving: ServingConfig{DefaultTopN: 10, MaxTopN: 100, RerankDepth: 50},
		Catalog: CatalogConfig{Policy: DefaultPolicy},
	}
}

// Load 按 默认值 -> YAML 文件 -> 环境变量 的顺序叠加配置并校验。
// path 为空时跳过文件层；文件中未出现的字段保留默认值，空的环境变量不覆盖。
func Load(path string) (Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// YAML 把生效配置序列化为 YAML，可直接作为配置文件再次加载
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
