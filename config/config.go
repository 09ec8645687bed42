package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SystemConfig lives in the XDG config dir and only says where the data
// directory is.
type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// ProviderSettings selects the LLM backend and wire protocol.
type ProviderSettings struct {
	Kind     string `toml:"kind"` // "openai" or "gemini"
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"`
}

// SecuritySettings selects how API credentials are stored on disk.
type SecuritySettings struct {
	Method     string `toml:"method"` // "plaintext" or "ssh_key"
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// UserConfig lives in the data directory alongside the database.
type UserConfig struct {
	Provider         ProviderSettings `toml:"provider"`
	Security         SecuritySettings `toml:"security"`
	Language         string           `toml:"language"` // "en", "zh", "ja"
	UseGlobalProfile bool             `toml:"use_global_profile"`
}

// Config is the merged runtime configuration.
type Config struct {
	DataDirectory    string
	ProviderKind     string
	Endpoint         string
	Model            string
	Language         string
	UseGlobalProfile bool

	SecurityMethod SecurityMethod
	SSHKeyPath     string

	CredentialStore *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// APIKey returns the credential for the active provider, or "" when none is
// configured. The environment override wins over the credential store.
func (c *Config) APIKey() string {
	if key := os.Getenv("OMNITERM_API_KEY"); key != "" {
		return key
	}
	if c.CredentialStore != nil {
		return c.CredentialStore.Get(c.ProviderKind)
	}
	return ""
}

func (c *Config) applyEnvOverrides() {
	if kind := os.Getenv("OMNITERM_PROVIDER"); kind != "" {
		c.ProviderKind = kind
	}
	if endpoint := os.Getenv("OMNITERM_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}
	if model := os.Getenv("OMNITERM_MODEL"); model != "" {
		c.Model = model
	}
	if lang := os.Getenv("OMNITERM_LANGUAGE"); lang != "" {
		c.Language = lang
	}
	if dataDir := os.Getenv("OMNITERM_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("OMNITERM_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens <data_dir>/debug.log when OMNITERM_DEBUG is set.
// Callers nil-check DebugLog before use.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (OMNITERM_DEBUG=%s) ===", os.Getenv("OMNITERM_DEBUG"))
}

// Load reads system config, then user config from the data directory, then
// applies environment overrides, and finally loads the credential store.
func Load() (*Config, error) {
	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	dataDir := cfg.DataDir()
	if err := EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.ProviderKind = userCfg.Provider.Kind
	cfg.Endpoint = userCfg.Provider.Endpoint
	cfg.Model = userCfg.Provider.Model
	cfg.Language = userCfg.Language
	cfg.UseGlobalProfile = userCfg.UseGlobalProfile
	cfg.SecurityMethod = SecurityMethod(userCfg.Security.Method)
	cfg.SSHKeyPath = ExpandPath(userCfg.Security.SSHKeyPath)

	cfg.applyEnvOverrides()

	if cfg.SecurityMethod == "" {
		cfg.SecurityMethod = SecurityPlainText
	}
	cfg.CredentialStore = NewCredentialStore(cfg.SecurityMethod, cfg.SSHKeyPath)
	if err := cfg.CredentialStore.Load(cfg.DataDir()); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	InitDebugLog(cfg.DataDir())
	return cfg, nil
}
