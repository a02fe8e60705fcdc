package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/lounge/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Bridge        BridgeConfig        `koanf:"bridge"`
	Session       SessionConfig       `koanf:"session"`
	Negotiation   NegotiationConfig   `koanf:"negotiation"`
	Game          GameConfig          `koanf:"game"`
	Media         MediaConfig         `koanf:"media"`
	Logger        LoggerConfig        `koanf:"logger"`
	Tracing       TracingConfig       `koanf:"tracing"`
	IdentityCache IdentityCacheConfig `koanf:"identity_cache"`
}

// ServerConfig points at the chat server's websocket endpoint.
type ServerConfig struct {
	URL              string        `koanf:"url"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	MaxRetries       uint          `koanf:"max_retries"`
	MaxBackoff       time.Duration `koanf:"max_backoff"`
}

// BridgeConfig is the local HTTP surface the renderer talks to.
type BridgeConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IntentLimit    int           `koanf:"intent_limit"`
	IntentWindow   time.Duration `koanf:"intent_window"`
}

type SessionConfig struct {
	TypingIdle  time.Duration `koanf:"typing_idle"`
	NoticeTTL   time.Duration `koanf:"notice_ttl"`
	Tick        time.Duration `koanf:"tick"`
	LogCapacity int           `koanf:"log_capacity"`
	InboxSize   int           `koanf:"inbox_size"`
}

type NegotiationConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
	Cooldown       time.Duration `koanf:"cooldown"`
	CallTimeout    time.Duration `koanf:"call_timeout"`
}

type GameConfig struct {
	StrokeRate  float64 `koanf:"stroke_rate"`
	StrokeBurst int     `koanf:"stroke_burst"`
}

type MediaConfig struct {
	ICEServers []string `koanf:"ice_servers"`
}

type LoggerConfig struct {
	FilePath string `koanf:"file_path"`
	Encoding string `koanf:"encoding"`
	Level    string `koanf:"level"`
	Logger   string `koanf:"logger"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Exporter    string `koanf:"exporter"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

type IdentityCacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// Server
	setDefault(k, "server.url", "ws://localhost:3000/ws")
	setDefault(k, "server.handshake_timeout", 10*time.Second)
	setDefault(k, "server.write_timeout", 5*time.Second)
	setDefault(k, "server.max_retries", 8)
	setDefault(k, "server.max_backoff", 30*time.Second)

	// Bridge
	setDefault(k, "bridge.host", "127.0.0.1")
	setDefault(k, "bridge.port", 7070)
	setDefault(k, "bridge.allowed_origins", []string{"*"})
	setDefault(k, "bridge.read_timeout", 10*time.Second)
	setDefault(k, "bridge.write_timeout", 30*time.Second)
	setDefault(k, "bridge.intent_limit", 60)
	setDefault(k, "bridge.intent_window", time.Second)

	// Session
	setDefault(k, "session.typing_idle", 1500*time.Millisecond)
	setDefault(k, "session.notice_ttl", 3*time.Second)
	setDefault(k, "session.tick", 100*time.Millisecond)
	setDefault(k, "session.log_capacity", 200)
	setDefault(k, "session.inbox_size", 64)

	// Negotiation
	setDefault(k, "negotiation.request_timeout", 30*time.Second)
	setDefault(k, "negotiation.cooldown", 5*time.Minute)
	setDefault(k, "negotiation.call_timeout", 45*time.Second)

	// Game
	setDefault(k, "game.stroke_rate", 60.0)
	setDefault(k, "game.stroke_burst", 20)

	// Media
	setDefault(k, "media.ice_servers", []string{"stun:stun.l.google.com:19302"})

	// Logger
	setDefault(k, "logger.file_path", "./logs/")
	setDefault(k, "logger.encoding", "json")
	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.logger", "zap")

	// Tracing
	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.exporter", "otlp")
	setDefault(k, "tracing.endpoint", "localhost:4318")
	setDefault(k, "tracing.service_name", "lounge")

	// Identity cache
	setDefault(k, "identity_cache.enabled", true)
	setDefault(k, "identity_cache.path", "./data/identity.json")
	setDefault(k, "identity_cache.ttl", 5*time.Minute)
}

func applyEnvOverrides(k *koanf.Koanf) {
	if url := env.GetString("LOUNGE_SERVER_URL", ""); url != "" {
		k.Set("server.url", url)
	}
	if retries := env.GetInt("LOUNGE_SERVER_MAX_RETRIES", 0); retries > 0 {
		k.Set("server.max_retries", uint(retries))
	}

	if host := env.GetString("LOUNGE_BRIDGE_HOST", ""); host != "" {
		k.Set("bridge.host", host)
	}
	if port := env.GetInt("LOUNGE_BRIDGE_PORT", 0); port > 0 {
		k.Set("bridge.port", port)
	}

	if idle := env.GetDuration("LOUNGE_TYPING_IDLE", 0); idle > 0 {
		k.Set("session.typing_idle", idle)
	}
	if ttl := env.GetDuration("LOUNGE_NOTICE_TTL", 0); ttl > 0 {
		k.Set("session.notice_ttl", ttl)
	}

	if timeout := env.GetDuration("LOUNGE_REQUEST_TIMEOUT", 0); timeout > 0 {
		k.Set("negotiation.request_timeout", timeout)
	}
	// zero is meaningful for the cooldown: it never expires
	if cooldown := env.GetDuration("LOUNGE_DECLINE_COOLDOWN", -1); cooldown >= 0 {
		k.Set("negotiation.cooldown", cooldown)
	}

	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if logger := env.GetString("LOGGER_LOGGER", ""); logger != "" {
		k.Set("logger.logger", logger)
	}
	if path := env.GetString("LOGGER_FILE_PATH", ""); path != "" {
		k.Set("logger.file_path", path)
	}

	if env.GetBool("LOUNGE_TRACING_ENABLED", false) {
		k.Set("tracing.enabled", true)
	}
	if endpoint := env.GetString("LOUNGE_TRACING_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
	}

	if path := env.GetString("LOUNGE_IDENTITY_CACHE", ""); path != "" {
		k.Set("identity_cache.path", path)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
