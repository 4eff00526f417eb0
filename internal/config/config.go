// Package config reads the YAML configuration shared by the CLI commands.
//
//	evaluator:
//	  result_cache: true
//	  section_cache: true
//	  self_check: false
//	server:
//	  addr: ":8080"
//	  pretty: false
//	  timeout: 10s
//	  max_body_bytes: 1048576
//	  cors_origins: ["*"]
//	otel:
//	  endpoint: localhost:4317
//	  service: gqlpath
//	documents:
//	  root: ./graphql
//
// Keys left out keep their defaults. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/hanpama/gqlpath/internal/eventbus"
	"github.com/hanpama/gqlpath/internal/lazy"
	"github.com/hanpama/gqlpath/internal/section"
	"github.com/hanpama/gqlpath/internal/server"
)

type Config struct {
	Evaluator Evaluator `yaml:"evaluator"`
	Server    Server    `yaml:"server"`
	Otel      Otel      `yaml:"otel"`
	Documents Documents `yaml:"documents"`
}

type Evaluator struct {
	ResultCache  bool `yaml:"result_cache"`
	SectionCache bool `yaml:"section_cache"`
	SelfCheck    bool `yaml:"self_check"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	Pretty       bool          `yaml:"pretty"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// Documents limits what the server may read. Served ids are paths
// relative to Root.
type Documents struct {
	Root string `yaml:"root"`
}

type Otel struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Evaluator: Evaluator{ResultCache: true, SectionCache: true},
		Server:    Server{Addr: ":8080", Timeout: 10 * time.Second, MaxBodyBytes: 1 << 20},
		Otel:      Otel{Service: "gqlpath"},
		Documents: Documents{Root: "."},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout must not be negative"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.max_body_bytes must not be negative"))
	}
	if c.Otel.Endpoint != "" && c.Otel.Service == "" {
		errs = append(errs, errors.New("otel.service is required with otel.endpoint"))
	}
	if c.Documents.Root == "" {
		errs = append(errs, errors.New("documents.root must not be empty"))
	}
	return errors.Join(errs...)
}

// DocumentSource returns the source the server reads documents from,
// confined to Documents.Root.
func (c Config) DocumentSource() (*section.RootedSource, error) {
	return section.NewRootedSource(c.Documents.Root, nil)
}

// LazyOptions builds evaluator options reading documents from src and
// publishing to bus. Either may be nil.
func (c Config) LazyOptions(src section.Source, bus *eventbus.Bus) []lazy.Option {
	return []lazy.Option{
		lazy.WithResultCache(c.Evaluator.ResultCache),
		lazy.WithSectionCache(c.Evaluator.SectionCache),
		lazy.WithSelfCheck(c.Evaluator.SelfCheck),
		lazy.WithSource(src),
		lazy.WithEventBus(bus),
	}
}

func (c Config) ServerOptions(bus *eventbus.Bus) []server.Option {
	opts := []server.Option{
		server.WithTimeout(c.Server.Timeout),
		server.WithMaxBodyBytes(c.Server.MaxBodyBytes),
		server.WithEventBus(bus),
	}
	if c.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(c.Server.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(c.Server.CORSOrigins...))
	}
	return opts
}
