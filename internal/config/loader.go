// Package config loads the discovery configuration from a config file, the environment
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sufield/provenance/internal/discovery"
	"github.com/sufield/provenance/internal/validation"
)

// EnvPrefix is prepended to every environment override, e.g. PROVENANCE_PACKAGE_VERSION.
const EnvPrefix = "PROVENANCE"

// DefaultConfigName is the config file searched for when none is given, with any
// extension viper supports (.yaml, .toml, .json, ...).
const DefaultConfigName = ".provenance"

// Configuration keys.
const (
	KeyPackageVersion     = "package.version"
	KeyPackageVersionFile = "package.version_file"
	KeyVCSEnabled         = "vcs.enabled"
	KeyVCSGitPath         = "vcs.git_path"
	KeyVCSTimeout         = "vcs.timeout"
	KeyVCSUntrackedDirty  = "vcs.untracked_dirty"
	KeyToolchainGoPath    = "toolchain.go_path"
	KeyBuildStampID       = "build.stamp_id"
	KeyBuildModulePath    = "build.module_path"
	KeyBuildTags          = "build.tags"
	KeyBuildRace          = "build.race"
	KeyBuildTrimpath      = "build.trimpath"
	KeyEmitFormat         = "emit.format"
	KeyEmitOutput         = "emit.output"
	KeyEmitPackage        = "emit.package"
	KeyEmitImportPath     = "emit.import_path"
	KeyLogLevel           = "log.level"
	KeyLogFormat          = "log.format"
)

// Configuration represents the complete configuration of a discovery run.
type Configuration struct {
	Package   PackageConfig   `mapstructure:"package"`
	VCS       VCSConfig       `mapstructure:"vcs"`
	Toolchain ToolchainConfig `mapstructure:"toolchain"`
	Build     BuildConfig     `mapstructure:"build"`
	Emit      EmitConfig      `mapstructure:"emit"`
	Log       LogConfig       `mapstructure:"log"`
}

// PackageConfig locates the package version.
type PackageConfig struct {
	Version     string `mapstructure:"version" validate:"omitempty,semver"`
	VersionFile string `mapstructure:"version_file" validate:"required"`
}

// VCSConfig controls the version control query.
type VCSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	GitPath        string        `mapstructure:"git_path" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UntrackedDirty bool          `mapstructure:"untracked_dirty"`
}

// ToolchainConfig locates the go command.
type ToolchainConfig struct {
	GoPath string `mapstructure:"go_path" validate:"required"`
}

// BuildConfig holds optional supplementary facts. Tags, Race and Trimpath should match
// the flags passed to go build; they are recorded, not applied.
type BuildConfig struct {
	StampID    bool     `mapstructure:"stamp_id"`
	ModulePath string   `mapstructure:"module_path"`
	Tags       []string `mapstructure:"tags" validate:"dive,required"`
	Race       bool     `mapstructure:"race"`
	Trimpath   bool     `mapstructure:"trimpath"`
}

// EmitConfig selects how facts are handed to the compiler.
type EmitConfig struct {
	Format     string `mapstructure:"format" validate:"oneof=ldflags go json env"`
	Output     string `mapstructure:"output"`
	Package    string `mapstructure:"package" validate:"omitempty,go_ident"`
	ImportPath string `mapstructure:"import_path"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  slog.Level `mapstructure:"level"`
	Format string     `mapstructure:"format" validate:"oneof=text json"`
}

// Discovery converts the configuration into discovery settings rooted at dir.
func (c *Configuration) Discovery(dir string) discovery.Config {
	return discovery.Config{
		Dir:            dir,
		PackageVersion: c.Package.Version,
		VersionFile:    c.Package.VersionFile,
		VCSEnabled:     c.VCS.Enabled,
		GitPath:        c.VCS.GitPath,
		VCSTimeout:     c.VCS.Timeout,
		UntrackedDirty: c.VCS.UntrackedDirty,
		GoPath:         c.Toolchain.GoPath,
		Tags:           c.Build.Tags,
		Race:           c.Build.Race,
		Trimpath:       c.Build.Trimpath,
		ModulePath:     c.Build.ModulePath,
		StampBuildID:   c.Build.StampID,
	}
}

// NewViper returns a viper instance with defaults and environment overrides registered.
// Every key has a default so that AutomaticEnv applies to all of them during Unmarshal.
func NewViper() *viper.Viper {
	v := viper.New()

	d := discovery.DefaultConfig()
	v.SetDefault(KeyPackageVersion, "")
	v.SetDefault(KeyPackageVersionFile, d.VersionFile)
	v.SetDefault(KeyVCSEnabled, d.VCSEnabled)
	v.SetDefault(KeyVCSGitPath, d.GitPath)
	v.SetDefault(KeyVCSTimeout, d.VCSTimeout)
	v.SetDefault(KeyVCSUntrackedDirty, d.UntrackedDirty)
	v.SetDefault(KeyToolchainGoPath, d.GoPath)
	v.SetDefault(KeyBuildStampID, false)
	v.SetDefault(KeyBuildModulePath, "")
	v.SetDefault(KeyBuildTags, []string{})
	v.SetDefault(KeyBuildRace, false)
	v.SetDefault(KeyBuildTrimpath, false)
	v.SetDefault(KeyEmitFormat, "ldflags")
	v.SetDefault(KeyEmitOutput, "")
	v.SetDefault(KeyEmitPackage, "main")
	v.SetDefault(KeyEmitImportPath, "")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// File is an explicit config file. It must exist when set.
	File string
	// Dir is searched for DefaultConfigName when File is empty.
	Dir string
	// EnvFile is a dotenv file loaded into the process environment first.
	// Variables already set in the environment take precedence.
	EnvFile string
}

// Load reads the configuration into a validated Configuration.
func Load(v *viper.Viper, opts LoadOptions) (*Configuration, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(DefaultConfigName)
		if opts.Dir != "" {
			v.AddConfigPath(opts.Dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Configuration
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validation.Default().Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed reports the file viper read, or "" when running on defaults.
func ConfigFileUsed(v *viper.Viper) string {
	return v.ConfigFileUsed()
}
