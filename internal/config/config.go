package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the engine configuration
type Config struct {
	Blur    BlurConfig    `json:"blur"`
	Guide   GuideConfig   `json:"guide"`
	Capture CaptureConfig `json:"capture"`
	Output  OutputConfig  `json:"output"`
}

// BlurConfig holds configuration for the focus and brightness gates
type BlurConfig struct {
	Threshold       float64 `json:"threshold"`
	BrightnessFloor float64 `json:"brightness_floor"`
}

// GuideConfig holds configuration for the capture guide geometry
type GuideConfig struct {
	Side float64 `json:"side"`
}

// CaptureConfig holds per-case capture limits
type CaptureConfig struct {
	MaxImages int `json:"max_images"`
}

// OutputConfig holds configuration for crop output
type OutputConfig struct {
	Dir         string `json:"dir"`
	JPEGQuality int    `json:"jpeg_quality"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Blur: BlurConfig{
			Threshold:       70,
			BrightnessFloor: 40,
		},
		Guide: GuideConfig{
			Side: 250,
		},
		Capture: CaptureConfig{
			MaxImages: 8,
		},
		Output: OutputConfig{
			Dir:         "captures",
			JPEGQuality: 92,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv overlays environment variables onto the configuration. A .env
// file is read first when present; missing variables leave values as-is.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()

	if v, err := strconv.ParseFloat(os.Getenv("BLUR_THRESHOLD"), 64); err == nil {
		c.Blur.Threshold = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("BRIGHTNESS_FLOOR"), 64); err == nil {
		c.Blur.BrightnessFloor = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("GUIDE_SIDE"), 64); err == nil {
		c.Guide.Side = v
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_IMAGES")); err == nil {
		c.Capture.MaxImages = v
	}
	if v, err := strconv.Atoi(os.Getenv("JPEG_QUALITY")); err == nil {
		c.Output.JPEGQuality = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Blur.Threshold < 0 {
		return fmt.Errorf("blur.threshold must not be negative")
	}

	if c.Blur.BrightnessFloor < 0 || c.Blur.BrightnessFloor > 255 {
		return fmt.Errorf("blur.brightness_floor must be between 0 and 255")
	}

	if c.Guide.Side <= 0 {
		return fmt.Errorf("guide.side must be positive")
	}

	if c.Capture.MaxImages < 1 {
		return fmt.Errorf("capture.max_images must be at least 1")
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "capture-engine", "config.json")
}
