// Package config loads process configuration from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ownlingo/unibot/assistant/providers/anthropic"
	"github.com/ownlingo/unibot/assistant/providers/gemini"
	"github.com/ownlingo/unibot/assistant/providers/libre"
	"github.com/ownlingo/unibot/assistant/providers/lingva"
	"github.com/ownlingo/unibot/assistant/providers/openai"
	"github.com/ownlingo/unibot/internal/logger"
)

const (
	defaultAddr           = ":8080"
	defaultLogLevel       = "info"
	defaultBodyLimit      = 10 << 20
	defaultHTTPTimeout    = 30 * time.Second
	defaultPingMessage    = "ping"
	defaultGeminiModel    = "gemini-1.5-flash-latest"
	defaultGeminiFallback = "gemini-1.5-flash-8b"
	defaultOCREngine      = 2
)

type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Log         LogConfig       `mapstructure:"log"`
	Providers   ProviderConfigs `mapstructure:"providers"`
	PingMessage string          `mapstructure:"ping_message"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	BodyLimit   int64         `mapstructure:"body_limit"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ProviderConfigs struct {
	Google    GoogleConfig   `mapstructure:"google"`
	OpenAI    ModelConfig    `mapstructure:"openai"`
	Anthropic ModelConfig    `mapstructure:"anthropic"`
	OCRSpace  OCRSpaceConfig `mapstructure:"ocrspace"`
	Libre     LibreConfig    `mapstructure:"libre"`
	Lingva    EndpointConfig `mapstructure:"lingva"`
	TTS       EndpointConfig `mapstructure:"tts"`
}

// GoogleConfig covers every provider billed against the Google key
type GoogleConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	SecondaryModel string `mapstructure:"secondary_model"`
	BaseURL        string `mapstructure:"base_url"`
	TranslateURL   string `mapstructure:"translate_url"`

	RateLimits `mapstructure:",squash"`
}

type ModelConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`

	RateLimits `mapstructure:",squash"`
}

// RateLimits caps a generation provider per minute; 0 or less lifts a cap.
// Changes are applied to running providers on config reload.
type RateLimits struct {
	TPM int `mapstructure:"tpm"`
	RPM int `mapstructure:"rpm"`
}

type OCRSpaceConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	Engine   int    `mapstructure:"engine"`
}

type LibreConfig struct {
	URL    string   `mapstructure:"url"`
	APIKey string   `mapstructure:"api_key"`
	Hosts  []string `mapstructure:"hosts"`
}

type EndpointConfig struct {
	URL string `mapstructure:"url"`
}

// defaultRateLimits follows each provider's published free or entry tier
var defaultRateLimits = map[string]RateLimits{
	"google":    {TPM: gemini.DefaultConfig("").TPM, RPM: gemini.DefaultConfig("").RPM},
	"openai":    {TPM: openai.DefaultConfig("").TPM, RPM: openai.DefaultConfig("").RPM},
	"anthropic": {TPM: anthropic.DefaultConfig("").TPM, RPM: anthropic.DefaultConfig("").RPM},
}

// envBindings maps config keys onto the environment variables that set them
var envBindings = map[string]string{
	"providers.google.api_key":    "GOOGLE_API_KEY",
	"providers.openai.api_key":    "OPENAI_API_KEY",
	"providers.anthropic.api_key": "ANTHROPIC_API_KEY",
	"providers.ocrspace.api_key":  "OCR_SPACE_API_KEY",
	"providers.libre.url":         "LIBRETRANSLATE_URL",
	"providers.libre.api_key":     "LIBRETRANSLATE_API_KEY",
	"server.addr":                 "UNIBOT_ADDR",
	"server.body_limit":           "UNIBOT_BODY_LIMIT",
	"server.http_timeout":         "UNIBOT_HTTP_TIMEOUT",
	"log.level":                   "UNIBOT_LOG_LEVEL",
	"ping_message":                "PING_MESSAGE",
}

// Load reads path (optional) and the environment
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch reloads path whenever it changes, applies the new log level and hands
// the result to fn. Reload errors are logged and the previous config stays.
func Watch(path string, fn func(*Config)) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config watch requires a file path")
	}
	v, err := newViper(path)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		logger.Infof("config reloaded from %s (log level %s)", evt.Name, cfg.Log.Level)
		if fn != nil {
			fn(cfg)
		}
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", defaultAddr)
	v.SetDefault("server.body_limit", defaultBodyLimit)
	v.SetDefault("server.http_timeout", defaultHTTPTimeout)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("ping_message", defaultPingMessage)
	v.SetDefault("providers.google.model", defaultGeminiModel)
	v.SetDefault("providers.google.secondary_model", defaultGeminiFallback)
	for name, limits := range defaultRateLimits {
		v.SetDefault("providers."+name+".tpm", limits.TPM)
		v.SetDefault("providers."+name+".rpm", limits.RPM)
	}
	v.SetDefault("providers.ocrspace.engine", defaultOCREngine)
	v.SetDefault("providers.lingva.url", lingva.DefaultBaseURL)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			byteSizeHook(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.BodyLimit <= 0 {
		return fmt.Errorf("server.body_limit must be positive, got %d", c.Server.BodyLimit)
	}
	if c.Server.HTTPTimeout <= 0 {
		return fmt.Errorf("server.http_timeout must be positive, got %s", c.Server.HTTPTimeout)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// LibreHosts lists the LibreTranslate hosts to try, the configured one first
func (c *Config) LibreHosts() []string {
	first := c.Providers.Libre.URL
	if first == "" {
		first = libre.DefaultHost
	}
	rest := c.Providers.Libre.Hosts
	if len(rest) == 0 {
		rest = libre.PublicHosts
	}

	seen := make(map[string]bool)
	var hosts []string
	for _, h := range append([]string{first}, rest...) {
		h = strings.TrimRight(strings.TrimSpace(h), "/")
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts
}

// Summary describes the config with every credential masked
func (c *Config) Summary() []string {
	p := c.Providers
	return []string{
		"addr=" + c.Server.Addr,
		"log_level=" + c.Log.Level,
		"body_limit=" + strconv.FormatInt(c.Server.BodyLimit, 10),
		"http_timeout=" + c.Server.HTTPTimeout.String(),
		"google_key=" + logger.Mask(p.Google.APIKey),
		"openai_key=" + logger.Mask(p.OpenAI.APIKey),
		"anthropic_key=" + logger.Mask(p.Anthropic.APIKey),
		"ocr_space_key=" + logger.Mask(p.OCRSpace.APIKey),
		"libre_hosts=" + strings.Join(c.LibreHosts(), ","),
		"lingva=" + p.Lingva.URL,
	}
}

// byteSizeHook accepts sizes such as "10MB", "512k" or plain byte counts
func byteSizeHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Int64 {
			return data, nil
		}
		if to == reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return ParseByteSize(data.(string))
	}
}

// ParseByteSize parses a size with an optional K, M or G suffix (powers of 1024)
func ParseByteSize(s string) (int64, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	raw = strings.TrimSuffix(raw, "B")
	mult := int64(1)
	switch {
	case strings.HasSuffix(raw, "K"):
		mult, raw = 1<<10, strings.TrimSuffix(raw, "K")
	case strings.HasSuffix(raw, "M"):
		mult, raw = 1<<20, strings.TrimSuffix(raw, "M")
	case strings.HasSuffix(raw, "G"):
		mult, raw = 1<<30, strings.TrimSuffix(raw, "G")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n > math.MaxInt64/mult || n < math.MinInt64/mult {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return n * mult, nil
}
