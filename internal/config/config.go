package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Input  InputConfig  `mapstructure:"input"`
	Output OutputConfig `mapstructure:"output"`
	Plan   Plan         `mapstructure:"plan"`
	Log    LogConfig    `mapstructure:"log"`
}

type InputConfig struct {
	// Path is an image file, a directory of layer images, a PDF or
	// "qr:<text>".
	Path   string `mapstructure:"path"`
	Page   int    `mapstructure:"page"`
	DPI    int    `mapstructure:"dpi"`
	QRSize int    `mapstructure:"qr_size"`
}

type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	Manifest   string `mapstructure:"manifest"`
	DumpFrames bool   `mapstructure:"dump_frames"`
	Workers    int    `mapstructure:"workers"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Quiet bool   `mapstructure:"quiet"`
}

// EnvPrefix prefixes environment overrides, e.g. ANIMFRAMES_PLAN_PRESET.
const EnvPrefix = "ANIMFRAMES"

// Load reads a YAML config file. Unset keys keep their defaults and every
// key can be overridden from the environment. A missing file is not an
// error: the result is then the defaults plus the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !missing(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func missing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.path", "")
	v.SetDefault("input.page", 0)
	v.SetDefault("input.dpi", 150)
	v.SetDefault("input.qr_size", 256)

	v.SetDefault("output.dir", "frames")
	v.SetDefault("output.manifest", "manifest.yaml")
	v.SetDefault("output.dump_frames", true)
	v.SetDefault("output.workers", 4)

	v.SetDefault("plan.preset", "rotate")
	v.SetDefault("plan.target", "")

	v.SetDefault("log.mode", "debug")
	v.SetDefault("log.quiet", false)
}

func Default() *Config {
	return &Config{
		Input: InputConfig{
			DPI:    150,
			QRSize: 256,
		},
		Output: OutputConfig{
			Dir:        "frames",
			Manifest:   "manifest.yaml",
			DumpFrames: true,
			Workers:    4,
		},
		Plan: Plan{
			Preset: "rotate",
		},
		Log: LogConfig{
			Mode: "debug",
		},
	}
}

// Validate checks the parts of the config that do not depend on the source
// image. Frame counts are checked by the generators themselves.
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input path is empty")
	}
	if c.Input.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %d", c.Input.DPI)
	}
	if c.Input.QRSize <= 0 {
		return fmt.Errorf("qr size must be positive, got %d", c.Input.QRSize)
	}
	if c.Output.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Output.Workers)
	}
	if _, err := c.Plan.Resolve(); err != nil {
		return err
	}
	return nil
}
