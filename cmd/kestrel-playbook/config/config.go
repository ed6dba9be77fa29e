package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config merges defaults, an optional config.yaml, and env overrides
// (env wins). Empty or relative data paths resolve under the base dir and
// are created at load time.
type Config struct {
	Messaging MessagingConfig `yaml:"messaging"`
	Redis     RedisConfig     `yaml:"redis"`
	GenAI     GenAIConfig     `yaml:"genai"`
	Execution ExecutionConfig `yaml:"execution"`
	Data      DataConfig      `yaml:"data"`

	OpsAddr string `yaml:"ops_addr"`
}

type MessagingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	RoutingKey string `yaml:"routing_key"`
	// FileInput points at a JSON/JSONL alert file processed once at
	// startup (batch mode).
	FileInput string `yaml:"file_input"`
}

type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	TLS             bool   `yaml:"tls"`
	LockTTL         int    `yaml:"lock_ttl"`
	CooldownTTL     int    `yaml:"cooldown_ttl"`
	CooldownEnabled bool   `yaml:"cooldown_enabled"`
}

// GenAIConfig is parsed for compatibility; inert while no planner is wired.
type GenAIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

type ExecutionConfig struct {
	Mode             string `yaml:"mode"`
	AllowIsolateHost bool   `yaml:"allow_isolate_host"`
	QuarantineDir    string `yaml:"quarantine_dir"`
	Persist          bool   `yaml:"persist"`
}

type DataConfig struct {
	BaseDir            string `yaml:"base_dir"`
	PlaybooksStatic    string `yaml:"playbooks_static"`
	PlaybooksGenerated string `yaml:"playbooks_generated"`
	Executions         string `yaml:"executions"`
	Quarantine         string `yaml:"quarantine"`
	ActionsCatalog     string `yaml:"actions_catalog"`
	AuditFile          string `yaml:"audit_file"`
}

func defaults() *Config {
	return &Config{
		Messaging: MessagingConfig{
			Enabled:    true,
			URL:        "nats://localhost:4222",
			RoutingKey: "alerts.>",
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			LockTTL:         60,
			CooldownTTL:     300,
			CooldownEnabled: true,
		},
		GenAI: GenAIConfig{
			Provider: "none",
		},
		Execution: ExecutionConfig{
			Mode:    "local",
			Persist: true,
		},
		Data: DataConfig{
			BaseDir: "./data",
		},
		OpsAddr: ":8084",
	}
}

// Load reads the config file at path (optional) and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config parse failed: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config read failed: %w", err)
		}
	}

	applyEnv(cfg)

	if err := resolvePaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Messaging.URL, "NATS_URL")
	setString(&cfg.Messaging.User, "NATS_USER")
	setString(&cfg.Messaging.Password, "NATS_PASSWORD")
	setString(&cfg.Messaging.FileInput, "FILE_INPUT_PATH")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setBool(&cfg.Redis.TLS, "REDIS_TLS")
	setInt(&cfg.Redis.CooldownTTL, "REDIS_COOLDOWN_TTL")
	setBool(&cfg.Redis.CooldownEnabled, "REDIS_COOLDOWN_ENABLED")
	setBool(&cfg.Execution.AllowIsolateHost, "ALLOW_ISOLATE_HOST")
	setString(&cfg.Execution.QuarantineDir, "QUARANTINE_DIR")
	setBool(&cfg.Execution.Persist, "EXECUTIONS_PERSIST")
	setString(&cfg.Data.BaseDir, "DATA_DIR")
	setString(&cfg.OpsAddr, "OPS_ADDR")
}

// resolvePaths fills empty data paths with defaults under the base dir,
// absolutizes relative ones, and creates the directories.
func resolvePaths(cfg *Config) error {
	base, err := filepath.Abs(cfg.Data.BaseDir)
	if err != nil {
		return err
	}
	cfg.Data.BaseDir = base

	resolve := func(value *string, fallback string) {
		if *value == "" {
			*value = fallback
		} else if !filepath.IsAbs(*value) {
			*value = filepath.Join(base, *value)
		}
	}

	resolve(&cfg.Data.PlaybooksStatic, filepath.Join(base, "playbooks", "static"))
	resolve(&cfg.Data.PlaybooksGenerated, filepath.Join(base, "playbooks", "generated"))
	resolve(&cfg.Data.Executions, filepath.Join(base, "executions"))
	resolve(&cfg.Data.Quarantine, filepath.Join(base, "quarantine"))
	resolve(&cfg.Data.ActionsCatalog, filepath.Join(base, "actions.yaml"))
	resolve(&cfg.Data.AuditFile, filepath.Join(base, "audit.jsonl"))

	if cfg.Execution.QuarantineDir == "" {
		cfg.Execution.QuarantineDir = cfg.Data.Quarantine
	}

	for _, dir := range []string{
		cfg.Data.BaseDir,
		cfg.Data.PlaybooksStatic,
		cfg.Data.PlaybooksGenerated,
		cfg.Data.Executions,
		cfg.Execution.QuarantineDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("data dir %s: %w", dir, err)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		switch val {
		case "1", "true", "yes":
			*dst = true
		case "0", "false", "no":
			*dst = false
		}
	}
}
