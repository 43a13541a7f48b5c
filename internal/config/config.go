// Package config loads cache settings from a config file, MANGO_ environment
// variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyLibraryPath     = "library_path"
	KeySnapshotPath    = "library_cache_path"
	KeyEnabled         = "cache_enabled"
	KeySizeMB          = "cache_size_mbs"
	KeySize            = "cache_size"
	KeyVerbose         = "cache_log_enabled"
	KeyCodec           = "cache_codec"
	KeySaveOnShutdown  = "cache_save_on_shutdown"
	KeyShutdownTimeout = "cache_shutdown_timeout"
)

// EnvPrefix is the prefix of environment variables, e.g. MANGO_CACHE_SIZE_MBS.
const EnvPrefix = "MANGO"

// Codecs accepted by Validate.
var Codecs = []string{"zstd", "gzip", "none"}

// ErrInvalid is wrapped by every Validate error.
var ErrInvalid = errors.New("config: invalid")

// Config holds the cache engine settings.
type Config struct {
	LibraryPath  string
	SnapshotPath string
	Enabled      bool
	// SizeMB is the query cache budget in mebibytes.
	SizeMB int
	// Size is a human-readable budget such as "64MiB". It takes precedence over SizeMB.
	Size            string
	Verbose         bool
	Codec           string
	SaveOnShutdown  bool
	ShutdownTimeout time.Duration
}

// Default returns the default configuration with home directories expanded.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := fromViper(v)
	return cfg
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLibraryPath, "~/mango/library")
	v.SetDefault(KeySnapshotPath, "~/mango/library.cache")
	v.SetDefault(KeyEnabled, true)
	v.SetDefault(KeySizeMB, 50)
	v.SetDefault(KeySize, "")
	v.SetDefault(KeyVerbose, true)
	v.SetDefault(KeyCodec, "zstd")
	v.SetDefault(KeySaveOnShutdown, true)
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)
}

// NewViper returns a viper instance with defaults and environment binding.
// If configFile is empty, mango.yml is searched in ~/.config/mango and the
// working directory; a missing file is not an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		path, err := homedir.Expand(configFile)
		if err != nil {
			return nil, fmt.Errorf("expanding config path: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		return v, nil
	}

	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home + "/.config/mango")
	}
	v.AddConfigPath(".")
	v.SetConfigName("mango")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg, err := fromViper(v)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Enabled:         v.GetBool(KeyEnabled),
		SizeMB:          v.GetInt(KeySizeMB),
		Size:            v.GetString(KeySize),
		Verbose:         v.GetBool(KeyVerbose),
		Codec:           strings.ToLower(v.GetString(KeyCodec)),
		SaveOnShutdown:  v.GetBool(KeySaveOnShutdown),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}

	var err error
	if cfg.LibraryPath, err = homedir.Expand(v.GetString(KeyLibraryPath)); err != nil {
		return cfg, fmt.Errorf("expanding %s: %w", KeyLibraryPath, err)
	}
	if cfg.SnapshotPath, err = homedir.Expand(v.GetString(KeySnapshotPath)); err != nil {
		return cfg, fmt.Errorf("expanding %s: %w", KeySnapshotPath, err)
	}
	return cfg, nil
}

// BudgetBytes returns the query cache budget in bytes.
func (c Config) BudgetBytes() (int64, error) {
	if c.Size != "" {
		n, err := humanize.ParseBytes(c.Size)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q: %w", ErrInvalid, KeySize, c.Size, err)
		}
		return int64(n), nil
	}
	return int64(c.SizeMB) * humanize.MiByte, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.LibraryPath == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalid, KeyLibraryPath)
	}
	if !isCodec(c.Codec) {
		return fmt.Errorf("%w: unknown %s %q (want one of %s)", ErrInvalid, KeyCodec, c.Codec, strings.Join(Codecs, ", "))
	}
	budget, err := c.BudgetBytes()
	if err != nil {
		return err
	}
	if budget <= 0 {
		return fmt.Errorf("%w: cache budget must be positive, got %d bytes", ErrInvalid, budget)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyShutdownTimeout)
	}
	return nil
}

func isCodec(name string) bool {
	for _, c := range Codecs {
		if c == name {
			return true
		}
	}
	return false
}

// String summarizes the configuration for logs.
func (c Config) String() string {
	budget, _ := c.BudgetBytes()
	return fmt.Sprintf("library=%s snapshot=%s enabled=%t budget=%s codec=%s",
		c.LibraryPath, c.SnapshotPath, c.Enabled, humanize.IBytes(uint64(max(budget, 0))), c.Codec)
}
