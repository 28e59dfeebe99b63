// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/logging"
	"github.com/guyvdb/tradestore/repository"
	"github.com/guyvdb/tradestore/store"
)

// Environment variables read by FromEnv.
const (
	EnvDataDir          = "TRADESTORE_DATA_DIR"
	EnvNamespace        = "TRADESTORE_NAMESPACE"
	EnvArchiveNamespace = "TRADESTORE_ARCHIVE_NAMESPACE"
	EnvCodec            = "TRADESTORE_CODEC"
	EnvSeparator        = "TRADESTORE_INDEX_SEPARATOR"
	EnvStrictUpdate     = "TRADESTORE_STRICT_UPDATE"
	EnvOpenTimeout      = "TRADESTORE_OPEN_TIMEOUT"
	EnvAddr             = "TRADESTORE_ADDR"
	EnvLogLevel         = "TRADESTORE_LOG_LEVEL"
	EnvLogNoColor       = "TRADESTORE_LOG_NOCOLOR"
)

// Config is the process configuration.
type Config struct {
	DataDir          string
	Namespace        string
	ArchiveNamespace string
	Codec            string
	Separator        string
	StrictUpdate     bool
	OpenTimeout      time.Duration
	Addr             string
	LogLevel         slog.Level
	LogNoColor       bool
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		DataDir:          "./data",
		Namespace:        "live",
		ArchiveNamespace: "archive",
		Codec:            codec.JSON.Name(),
		Separator:        store.DefaultSeparator,
		OpenTimeout:      time.Second,
		Addr:             ":8080",
		LogLevel:         slog.LevelInfo,
	}
}

// FromEnv overlays the set environment variables on Default and validates
// the result.
func FromEnv() (Config, error) {
	c := Default()
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvDataDir, &c.DataDir)
	str(EnvNamespace, &c.Namespace)
	str(EnvArchiveNamespace, &c.ArchiveNamespace)
	str(EnvCodec, &c.Codec)
	str(EnvAddr, &c.Addr)
	// the separator is taken verbatim, surrounding spaces included
	if v, ok := os.LookupEnv(EnvSeparator); ok && v != "" {
		c.Separator = v
	}

	flag := func(name string, dst *bool) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, v, fault.ErrInvalidArgument))
			return
		}
		*dst = b
	}
	flag(EnvStrictUpdate, &c.StrictUpdate)
	flag(EnvLogNoColor, &c.LogNoColor)

	if v := os.Getenv(EnvOpenTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", EnvOpenTimeout, v, fault.ErrInvalidArgument))
		} else {
			c.OpenTimeout = d
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLogLevel, err))
		} else {
			c.LogLevel = level
		}
	}

	if err := errors.Join(errs...); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data dir is required: %w", fault.ErrInvalidArgument))
	}
	if c.Namespace == "" || c.ArchiveNamespace == "" {
		errs = append(errs, fmt.Errorf("namespaces are required: %w", fault.ErrInvalidArgument))
	}
	if c.Namespace == c.ArchiveNamespace {
		errs = append(errs, fmt.Errorf("live and archive namespace are both %q: %w", c.Namespace, fault.ErrInvalidArgument))
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		errs = append(errs, err)
	}
	if c.Separator == "" {
		errs = append(errs, fmt.Errorf("index separator: %w: %w", fault.ErrSeparatorRequired, fault.ErrInvalidArgument))
	}
	if c.OpenTimeout < 0 {
		errs = append(errs, fmt.Errorf("open timeout %s is negative: %w", c.OpenTimeout, fault.ErrInvalidArgument))
	}
	if c.Addr == "" {
		errs = append(errs, fmt.Errorf("listen address is required: %w", fault.ErrInvalidArgument))
	}
	return errors.Join(errs...)
}

// Live locates the live trade repository.
func (c Config) Live() repository.Layout {
	return repository.Layout{DataDir: c.DataDir, Namespace: c.Namespace, Timeout: c.OpenTimeout}
}

// Archive locates the archive repository.
func (c Config) Archive() repository.Layout {
	return repository.Layout{DataDir: c.DataDir, Namespace: c.ArchiveNamespace, Timeout: c.OpenTimeout}
}

// RepositoryOptions returns the repository options this configuration
// selects.
func (c Config) RepositoryOptions() ([]repository.Option, error) {
	vc, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}
	return []repository.Option{
		repository.WithCodec(vc),
		repository.WithSeparator(c.Separator),
		repository.WithStrictUpdate(c.StrictUpdate),
	}, nil
}

// Logging returns the logging options this configuration selects.
func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.LogLevel, NoColor: c.LogNoColor}
}
