// Package config loads the grove daemon configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/uid"
)

var mountRegexp = regexp.MustCompile(`^/[A-Za-z0-9_\-/]*$`)

// Config is the daemon configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`
	Log    Log    `yaml:"log" json:"log"`
	Store  Store  `yaml:"store" json:"store"`
	APIs   []API  `yaml:"apis" json:"apis"`
}

// Log configures the daemon logger.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Store selects and configures the collection every API shares.
type Store struct {
	// Memory keeps documents in process instead of DynamoDB.
	Memory bool `yaml:"memory" json:"memory"`

	Table string `yaml:"table" json:"table"`
	// TableSuffix is appended to Table, e.g. "_test" per environment.
	TableSuffix string `yaml:"table_suffix" json:"table_suffix"`
	ScopeIndex  string `yaml:"scope_index" json:"scope_index"`
	Shards      int    `yaml:"shards" json:"shards"`

	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// CreateTable creates the table on startup when it is missing.
	CreateTable bool `yaml:"create_table" json:"create_table"`
}

// API is one mounted API instance.
type API struct {
	Name      string `yaml:"name" json:"name"`
	Mount     string `yaml:"mount" json:"mount"`
	UIDPrefix string `yaml:"uid_prefix" json:"uid_prefix"`
	ReadOnly  bool   `yaml:"read_only" json:"read_only"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	d := store.DefaultDynamoConfig()
	return &Config{
		Listen: ":3001",
		Log:    Log{Level: "info", Format: "text"},
		Store: Store{
			Table:      d.Table,
			ScopeIndex: d.ScopeIndex,
			Shards:     d.NumShards,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// TableName returns the table name with its suffix.
func (s Store) TableName() string {
	return s.Table + s.TableSuffix
}

// DynamoConfig returns the collection configuration.
func (s Store) DynamoConfig() store.DynamoConfig {
	return store.DynamoConfig{
		Table:      s.TableName(),
		ScopeIndex: s.ScopeIndex,
		NumShards:  s.Shards,
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.Log),
		validation.Field(&c.Store),
		validation.Field(&c.APIs, validation.Required, validation.By(uniqueMounts)),
	)
}

// Validate checks the log settings.
func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

// Validate checks the store settings.
func (s Store) Validate() error {
	if s.Memory {
		return nil
	}
	name := s.TableName()
	return validation.ValidateStruct(&s,
		validation.Field(&s.Table, validation.Required, validation.By(func(any) error {
			if !store.TableNameRegexp.MatchString(name) {
				return fmt.Errorf("invalid table name %q", name)
			}
			return nil
		})),
		validation.Field(&s.Shards, validation.Min(1), validation.Max(256)),
	)
}

// Validate checks one API entry.
func (a API) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Mount, validation.Required, validation.Match(mountRegexp)),
		validation.Field(&a.UIDPrefix, validation.Required, validation.By(validPrefix)),
	)
}

func validPrefix(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if strings.HasSuffix(s, uid.Wildcard) {
		return errors.New("cannot end with *")
	}
	if _, err := uid.Parse(s); err != nil {
		return err
	}
	return nil
}

func uniqueMounts(value any) error {
	apis, _ := value.([]API)
	seen := make(map[string]bool, len(apis))
	for _, a := range apis {
		m := "/" + strings.Trim(a.Mount, "/")
		if seen[m] {
			return fmt.Errorf("mount %q used twice", m)
		}
		seen[m] = true
	}
	return nil
}
