package aetcmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"aeterna.dev/aeterna"
)

// Config is read from an aeterna.toml file.
type Config struct {
	VM       VMConfig       `toml:"vm"`
	Teleport TeleportConfig `toml:"teleport"`
	Store    StoreConfig    `toml:"store"`
}

type VMConfig struct {
	MemorySize int    `toml:"memory_size"`
	MaxSteps   uint64 `toml:"max_steps"`
}

type TeleportConfig struct {
	// TargetHost is where REQUEST_HOST sends the VM.  If empty, REQUEST_HOST only logs.
	TargetHost string `toml:"target_host"`
	// Secret is used to derive the key for each host.
	// If empty, ephemeral keys are used.
	Secret    string `toml:"secret"`
	QueueSize int    `toml:"queue_size"`
}

type StoreConfig struct {
	// DB is the path to a SQLite database for checkpoints and the outbox.
	// If empty, checkpoints are kept in memory.
	DB string `toml:"db"`
}

func DefaultConfig() Config {
	return Config{
		VM: VMConfig{
			MemorySize: aeterna.MemorySize,
			MaxSteps:   aeterna.MaxSteps,
		},
		Teleport: TeleportConfig{
			QueueSize: 16,
		},
	}
}

// ParseConfig parses a TOML config.  Missing values take their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undec[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the config file at p.
// The empty path returns the default config.
func LoadConfig(p string) (Config, error) {
	if p == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", p, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse error in %s: %w", p, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.VM.MemorySize <= 0 {
		return fmt.Errorf("vm.memory_size must be positive, have %d", c.VM.MemorySize)
	}
	if c.VM.MaxSteps == 0 {
		return fmt.Errorf("vm.max_steps must be positive")
	}
	if c.Teleport.QueueSize <= 0 {
		return fmt.Errorf("teleport.queue_size must be positive, have %d", c.Teleport.QueueSize)
	}
	return nil
}
