package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Widget   WidgetConfig
	Resolver ResolverConfig
	AI       AIConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	switch cfg.Resolver.Backend {
	case BackendHTTP:
		if cfg.Resolver.URL == "" {
			return nil, fmt.Errorf("RESOLVER_URL is required when RESOLVER_BACKEND=%s", BackendHTTP)
		}
	case BackendArk:
		if !cfg.AI.Enabled() {
			return nil, fmt.Errorf("RESOLVER_BACKEND=%s requires ARK_MODEL and ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY", BackendArk)
		}
	default:
		return nil, fmt.Errorf("invalid RESOLVER_BACKEND value: %q", cfg.Resolver.Backend)
	}

	if cfg.Resolver.Timeout <= 0 {
		return nil, fmt.Errorf("RESOLVER_TIMEOUT must be positive, got %s", cfg.Resolver.Timeout)
	}

	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	Addr           string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// WidgetConfig 描述挂件配置文档的来源。
type WidgetConfig struct {
	Source       string        `env:"WIDGET_CONFIG_SOURCE" envDefault:"./config.json"`
	FetchTimeout time.Duration `env:"CONFIG_FETCH_TIMEOUT" envDefault:"10s"`
}

// Resolver backends.
const (
	BackendHTTP = "http"
	BackendArk  = "ark"
)

// ResolverConfig 描述远端回复服务。
type ResolverConfig struct {
	Backend string        `env:"RESOLVER_BACKEND" envDefault:"http"`
	URL     string        `env:"RESOLVER_URL"`
	Timeout time.Duration `env:"RESOLVER_TIMEOUT" envDefault:"30s"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float32 `env:"ARK_TEMPERATURE"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}
