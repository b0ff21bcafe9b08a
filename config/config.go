package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Server    ServerConfig
	Store     StoreConfig
	WebSocket WebSocketConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Messages  MessagesConfig
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Type       string // file, memory, sqlite or redis
	Path       string // directory for the file store
	SQLitePath string
	Redis      RedisConfig
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

type WebSocketConfig struct {
	MaxMessageSize    int64
	SendBuffer        int
	WriteWait         time.Duration
	PongWait          time.Duration
	MessagesPerSecond float64 // zero disables inbound rate limiting
	Burst             int
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type MessagesConfig struct {
	// Fired is the broadcast text; {{id}}, {{name}}, {{date}} and
	// {{timestamp}} are substituted.
	Fired string
}

// Manager owns one viper instance so tests and the server never share
// global state.
type Manager struct {
	v *viper.Viper

	mu  sync.RWMutex
	cfg *AppConfig
}

// Load reads defaults, an optional YAML file and REMINDER_* environment
// variables, in increasing precedence. An empty path looks for
// config.yaml in ./configs and the working directory and tolerates its
// absence; an explicit path must exist.
func Load(path string) (*Manager, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REMINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Manager{v: v, cfg: cfg}, nil
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (m *Manager) Get() *AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// ConfigFile is the file in use, empty when running on defaults and env.
func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

// Watch calls fn with the new config each time the config file changes
// and still validates. Invalid edits are reported to onErr and ignored.
// Watching without a config file is a no-op.
func (m *Manager) Watch(fn func(*AppConfig), onErr func(error)) {
	if m.ConfigFile() == "" {
		return
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := decode(m.v)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		m.mu.Lock()
		m.cfg = cfg
		m.mu.Unlock()
		fn(cfg)
	})
	m.v.WatchConfig()
}
