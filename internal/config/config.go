package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// maxBlockDims mirrors the kernel's fixed block-dimension capacity.
const maxBlockDims = 4

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Transform TransformConfig `mapstructure:"transform"`
}

type RuntimeConfig struct {
	Workers     int `mapstructure:"workers"`
	MinParallel int `mapstructure:"min_parallel"`
}

// TransformConfig holds the block geometry used by the s2b / b2s commands
// when the input file does not carry its own.
type TransformConfig struct {
	BlockShape []int  `mapstructure:"block_shape"`
	Paddings   []int  `mapstructure:"paddings"`
	TensorName string `mapstructure:"tensor_name"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// binding ties a config key to its command-line flag.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{key: "log_level", flag: "log-level"},
	{key: "runtime.workers", flag: "runtime-workers"},
	{key: "runtime.min_parallel", flag: "runtime-min-parallel"},
	{key: "transform.block_shape", flag: "transform-block-shape"},
	{key: "transform.paddings", flag: "transform-paddings"},
	{key: "transform.tensor_name", flag: "transform-tensor-name"},
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Runtime: RuntimeConfig{
			Workers:     runtime.NumCPU(),
			MinParallel: 4096,
		},
		Transform: TransformConfig{
			BlockShape: []int{2, 2},
			Paddings:   []int{0, 0, 0, 0},
			TensorName: "",
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("runtime-workers", defaults.Runtime.Workers, "Maximum goroutines per transform pass")
	fs.Int("runtime-min-parallel", defaults.Runtime.MinParallel, "Minimum elements handled by one goroutine")
	fs.IntSlice("transform-block-shape", defaults.Transform.BlockShape, "Block size per spatial dimension (1 to 4 values)")
	fs.IntSlice("transform-paddings", defaults.Transform.Paddings, "Start/end padding (or crop) pairs per block dimension")
	fs.String("transform-tensor-name", defaults.Transform.TensorName, "Tensor to read from the input file (default: first)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("SPACEBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("spacebatch")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("runtime.workers", c.Runtime.Workers)
	v.SetDefault("runtime.min_parallel", c.Runtime.MinParallel)
	v.SetDefault("transform.block_shape", c.Transform.BlockShape)
	v.SetDefault("transform.paddings", c.Transform.Paddings)
	v.SetDefault("transform.tensor_name", c.Transform.TensorName)
}

// bindFlags binds only the flags a command actually registers, so
// subcommands with a partial flag set still load.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, b := range bindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", b.flag, err)
		}
	}

	return nil
}

// Validate rejects settings the runtime cannot act on.
func (c Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if c.Runtime.Workers < 1 {
		return fmt.Errorf("runtime.workers must be >= 1, got %d", c.Runtime.Workers)
	}

	if c.Runtime.MinParallel < 1 {
		return fmt.Errorf("runtime.min_parallel must be >= 1, got %d", c.Runtime.MinParallel)
	}

	return c.Transform.Validate()
}

func (t TransformConfig) Validate() error {
	nd := len(t.BlockShape)
	if nd < 1 || nd > maxBlockDims {
		return fmt.Errorf("transform.block_shape must have 1 to %d values, got %v", maxBlockDims, t.BlockShape)
	}

	for i, b := range t.BlockShape {
		if b < 1 {
			return fmt.Errorf("transform.block_shape[%d] = %d must be positive", i, b)
		}
	}

	if len(t.Paddings) != 0 && len(t.Paddings) != 2*nd {
		return fmt.Errorf("transform.paddings needs %d values for %d block dims, got %v", 2*nd, nd, t.Paddings)
	}

	for i, p := range t.Paddings {
		if p < 0 {
			return fmt.Errorf("transform.paddings[%d] = %d must be non-negative", i, p)
		}
	}

	return nil
}

// Block returns the block shape as kernel-width integers.
func (t TransformConfig) Block() []int64 {
	return toInt64(t.BlockShape)
}

// Pads returns the padding pairs, expanding an empty list to all zeros.
func (t TransformConfig) Pads() []int64 {
	if len(t.Paddings) == 0 {
		return make([]int64, 2*len(t.BlockShape))
	}

	return toInt64(t.Paddings)
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}

	return out
}

// ParseLogLevel converts a log level string into a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}
