package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration, loaded from a TOML file
// over built-in defaults. Zero-downtime reload is out of scope; the
// file is read once at startup.
type Config struct {
	Server   Server   `toml:"server"`
	Login    Service  `toml:"login"`
	Game     Service  `toml:"game"`
	Status   Service  `toml:"status"`
	Database Database `toml:"database"`
	Admin    Admin    `toml:"admin"`
	Log      Log      `toml:"log"`
}

// Server holds process-wide settings.
type Server struct {
	Name string `toml:"name"`

	// TickMillis is the dispatcher interval; batched output flushes
	// once per tick.
	TickMillis int `toml:"tick_ms"`

	// ConnTimeoutSeconds is the per-connection inactivity limit.
	ConnTimeoutSeconds int `toml:"connection_timeout_s"`

	RSAKeyFile string `toml:"rsa_key_file"`

	// CompressionLevel is the deflate level for game sessions, 0
	// disables compression outright.
	CompressionLevel int `toml:"compression_level"`

	// CompressionThreshold is the minimum payload size worth deflating.
	CompressionThreshold int `toml:"compression_threshold"`
}

// Service is one listening port.
type Service struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Database locates the account store.
type Database struct {
	Path string `toml:"path"`
}

// Admin configures the HTTP admin endpoint.
type Admin struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Log configures structured logging.
type Log struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `toml:"level"`

	// Pretty switches from JSON to human-readable console output.
	Pretty bool `toml:"pretty"`
}

// Default returns the configuration the server runs with when no file
// overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Name:                 "Realm",
			TickMillis:           10,
			ConnTimeoutSeconds:   30,
			RSAKeyFile:           "realmd_rsa.pem",
			CompressionLevel:     6,
			CompressionThreshold: 256,
		},
		Login:    Service{Enabled: true, Addr: ":7171"},
		Game:     Service{Enabled: true, Addr: ":7172"},
		Status:   Service{Enabled: true, Addr: ":7173"},
		Database: Database{Path: "realmd.db"},
		Admin:    Admin{Enabled: true, Addr: ":8080"},
		Log:      Log{Level: "info"},
	}
}

// Load reads the TOML file at path on top of the defaults. Keys absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Server.TickMillis <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", c.Server.TickMillis)
	}
	if c.Server.ConnTimeoutSeconds <= 0 {
		return fmt.Errorf("connection_timeout_s must be positive, got %d", c.Server.ConnTimeoutSeconds)
	}
	if c.Server.CompressionLevel < 0 || c.Server.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be 0..9, got %d", c.Server.CompressionLevel)
	}
	if !c.Login.Enabled && !c.Game.Enabled && !c.Status.Enabled {
		return fmt.Errorf("no service port enabled")
	}
	return nil
}

// Tick returns the dispatcher interval as a duration.
func (c Config) Tick() time.Duration {
	return time.Duration(c.Server.TickMillis) * time.Millisecond
}

// ConnTimeout returns the connection inactivity limit as a duration.
func (c Config) ConnTimeout() time.Duration {
	return time.Duration(c.Server.ConnTimeoutSeconds) * time.Second
}
