package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Logging environments understood by the log package.
const (
	LogEnvDev  = "dev"
	LogEnvProd = "prod"
)

// DefaultConfigFile is looked up in the working directory when no --config flag is given.
const DefaultConfigFile = "config.yaml"

// envPrefix is prepended to upper-cased config keys for environment overrides,
// e.g. UNSPECTER_DECOMPILER_PATH.
const envPrefix = "UNSPECTER"

// --- Nested Configuration Structs ---

// DecompilerConfig describes how the external decompiler (pycdc) is invoked.
type DecompilerConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	ModeFlag    string `yaml:"mode_flag" mapstructure:"mode_flag"`       // selects marshalled-code input
	VersionFlag string `yaml:"version_flag" mapstructure:"version_flag"` // precedes Version on the command line
	Version     string `yaml:"version" mapstructure:"version"`           // bytecode version hint
	MinLines    int    `yaml:"min_lines" mapstructure:"min_lines"`       // output must have MORE lines than this
}

// OutputConfig defines where reconstructed sources are written.
type OutputConfig struct {
	File   string `yaml:"file" mapstructure:"file"`     // single-file default output path
	Suffix string `yaml:"suffix" mapstructure:"suffix"` // appended to file stems in directory mode
}

// Config holds all configuration settings for the deobfuscator.
type Config struct {
	// General behavior
	Silent       bool   `yaml:"silent" mapstructure:"silent"`                 // Only warnings and errors are logged
	DebugMode    bool   `yaml:"debug_mode" mapstructure:"debug_mode"`         // Enable verbose debug logging
	LogEnv       string `yaml:"log_env" mapstructure:"log_env"`               // dev or prod
	AbortOnError bool   `yaml:"abort_on_error" mapstructure:"abort_on_error"` // Stop directory runs on the first hard failure

	Decompiler DecompilerConfig `yaml:"decompiler" mapstructure:"decompiler"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`

	// File Handling
	Extensions []string `yaml:"extensions" mapstructure:"extensions"` // File extensions treated as Python source
	SkipPaths  []string `yaml:"skip" mapstructure:"skip"`             // Glob patterns ignored in directory mode
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		Silent:       false,
		DebugMode:    false,
		LogEnv:       LogEnvDev,
		AbortOnError: true,
		Decompiler: DecompilerConfig{
			Path:        filepath.Join(".", "decompylepp", "pycdc"),
			ModeFlag:    "-c",
			VersionFlag: "-v",
			Version:     "3.9",
			MinLines:    5,
		},
		Output: OutputConfig{
			File:   "deobfuscated.py",
			Suffix: ".deob.py",
		},
		Extensions: []string{"py"},
		SkipPaths:  []string{"*.git*", "__pycache__*", "*.deob.py"},
	}
}

// LoadConfig reads configuration from file and environment variables,
// then returns a filled Config struct.
//
// An explicitly named file that does not exist is an error; a missing
// default config.yaml silently falls back to defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}

	if _, err := os.Stat(configPath); err == nil {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("error unmarshalling config file %s: %w", configPath, err)
		}
	} else if os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the default configuration to a file.
func SaveConfig(configPath string) error {
	yamlData, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshalling default config: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
	}
	if err := os.WriteFile(configPath, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	return nil
}

// Validate reports settings that would make every run fail.
func (c *Config) Validate() error {
	if c.Decompiler.Path == "" {
		return fmt.Errorf("decompiler.path must not be empty")
	}
	if c.Decompiler.MinLines < 0 {
		return fmt.Errorf("decompiler.min_lines must not be negative, got %d", c.Decompiler.MinLines)
	}
	switch strings.ToLower(c.LogEnv) {
	case "", LogEnvDev, LogEnvProd:
	default:
		return fmt.Errorf("unknown log_env %q (want %q or %q)", c.LogEnv, LogEnvDev, LogEnvProd)
	}
	return nil
}

// Helper to explicitly bind environment variables, handling potential key mismatches
func bindEnv(v *viper.Viper, key string) {
	envKey := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	_ = v.BindEnv(key, envPrefix+"_"+envKey)
}

// applyEnvOverrides copies any UNSPECTER_* environment variables onto cfg.
// Only variables that are actually set take effect.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()

	overrides := map[string]func(){
		"silent":                  func() { cfg.Silent = v.GetBool("silent") },
		"debug_mode":              func() { cfg.DebugMode = v.GetBool("debug_mode") },
		"log_env":                 func() { cfg.LogEnv = v.GetString("log_env") },
		"abort_on_error":          func() { cfg.AbortOnError = v.GetBool("abort_on_error") },
		"decompiler.path":         func() { cfg.Decompiler.Path = v.GetString("decompiler.path") },
		"decompiler.mode_flag":    func() { cfg.Decompiler.ModeFlag = v.GetString("decompiler.mode_flag") },
		"decompiler.version_flag": func() { cfg.Decompiler.VersionFlag = v.GetString("decompiler.version_flag") },
		"decompiler.version":      func() { cfg.Decompiler.Version = v.GetString("decompiler.version") },
		"decompiler.min_lines":    func() { cfg.Decompiler.MinLines = v.GetInt("decompiler.min_lines") },
		"output.file":             func() { cfg.Output.File = v.GetString("output.file") },
		"output.suffix":           func() { cfg.Output.Suffix = v.GetString("output.suffix") },
	}

	for key, apply := range overrides {
		bindEnv(v, key)
		if v.IsSet(key) {
			apply()
		}
	}
}
