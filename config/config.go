package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
type Config struct {
	// EnhancerEndpoint is the text-generation endpoint the prompt enhancer
	// talks to. When empty it is resolved from the local/container endpoints
	// by the runtime probe at load time.
	EnhancerEndpoint          string        `mapstructure:"enhancer_endpoint"`
	EnhancerLocalEndpoint     string        `mapstructure:"enhancer_local_endpoint"`
	EnhancerContainerEndpoint string        `mapstructure:"enhancer_container_endpoint"`
	EnhancerModel             string        `mapstructure:"enhancer_model"`
	TextToImageAppID          string        `mapstructure:"text_to_image_app_id"`
	ImageTo3DAppID            string        `mapstructure:"image_to_3d_app_id"`
	ServiceBaseURL            string        `mapstructure:"service_base_url"`
	OutputDir                 string        `mapstructure:"output_dir"`
	DBPath                    string        `mapstructure:"db_path"`
	RequestTimeout            time.Duration `mapstructure:"request_timeout"`
	TellmURL                  string        `mapstructure:"tellm_url"`
	DefaultUserID             string        `mapstructure:"default_user_id"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		EnhancerLocalEndpoint:     "http://localhost:11434/api/generate",
		EnhancerContainerEndpoint: "http://host.docker.internal:11434/api/generate",
		EnhancerModel:             "llama2",
		ServiceBaseURL:            "http://localhost:8888",
		OutputDir:                 "outputs",
		DBPath:                    "memory.db",
		RequestTimeout:            120 * time.Second,
		DefaultUserID:             "super-user",
	}
	cfg.ResolveEnhancerEndpoint()
	return cfg
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".dreamforge"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and env vars still apply
	}

	// Environment variables
	v.SetEnvPrefix("DREAMFORGE")
	v.AutomaticEnv()
	v.BindEnv("enhancer_endpoint", "DREAMFORGE_ENHANCER_ENDPOINT")
	v.BindEnv("text_to_image_app_id", "DREAMFORGE_TEXT_TO_IMAGE_APP_ID")
	v.BindEnv("image_to_3d_app_id", "DREAMFORGE_IMAGE_TO_3D_APP_ID")

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.ResolveEnhancerEndpoint()

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ResolveEnhancerEndpoint fills in EnhancerEndpoint from the runtime probe
// when no explicit endpoint was configured. The probe runs once at load
// time; the pipeline only ever sees the resolved value.
func (c *Config) ResolveEnhancerEndpoint() {
	if c.EnhancerEndpoint != "" {
		return
	}
	if RunningInContainer() {
		c.EnhancerEndpoint = c.EnhancerContainerEndpoint
	} else {
		c.EnhancerEndpoint = c.EnhancerLocalEndpoint
	}
}

func validateConfig(config *Config) error {
	if config.EnhancerEndpoint == "" {
		return fmt.Errorf("enhancer endpoint is required")
	}
	if config.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if config.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// RunningInContainer reports whether the process is running inside a
// container, based on the marker file and the init process cgroup.
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "docker") || strings.Contains(content, "containerd")
}
