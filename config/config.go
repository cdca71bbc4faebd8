// Package config loads and validates the committee node's configuration:
// the gateway endpoint and TLS material, polling cadence, the storage
// adapter's sub-config, and the tree-height/profile pair that selects a
// Profile from the registry in profile.go.
//
// The flat top-level keys use a hand-rolled TOML-like format (section
// headers, "key = value" pairs, quoted strings; no arrays), grounded on the
// teacher's node/config_loader.go. The storage sub-config is an opaque,
// adapter-specific nested document, so it is parsed separately as YAML
// via gopkg.in/yaml.v2 rather than forced through the flat parser.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Config is the fully resolved, validated configuration for a committee
// node process. Field names mirror spec.md §6's enumerated options.
type Config struct {
	AvailabilityGatewayEndpoint string
	CertificatesPath            string
	PrivateKeyPath              string
	PollingIntervalSeconds      uint
	Storage                     StorageConfig
	TreeHeight                  uint
	Profile                     ProfileName
	MaxDeltaSize                uint

	// resolved is populated by Validate and exposes the Profile this
	// config selects.
	resolved Profile
}

// StorageConfig is the adapter-specific sub-config under the top-level
// "storage" key. Adapter is the adapter kind ("memory", "redis", ...);
// Options carries whatever keys that adapter needs, read as a nested
// YAML document rather than flat TOML-like keys since its shape varies
// per adapter.
type StorageConfig struct {
	Adapter string                 `yaml:"adapter"`
	Options map[string]interface{} `yaml:"options"`
}

// Default returns the stark_ex profile's default configuration, the way
// the teacher's DefaultNodeConfig supplies network defaults.
func Default() *Config {
	return &Config{
		AvailabilityGatewayEndpoint: "https://localhost:9412",
		CertificatesPath:            "./certs",
		PrivateKeyPath:              "./private_key.txt",
		PollingIntervalSeconds:      5,
		Storage:                     StorageConfig{Adapter: "memory"},
		TreeHeight:                  31,
		Profile:                     ProfileStarkEx,
		MaxDeltaSize:                4096,
	}
}

// ResolvedProfile returns the resolved Profile selected by cfg.Profile. Validate
// must have been called successfully first.
func (c *Config) ResolvedProfile() Profile { return c.resolved }

// Validate checks every field for presence and internal consistency, then
// resolves Profile against the registry and cross-checks TreeHeight
// against the profile's primary tree height.
func (c *Config) Validate() error {
	if c.AvailabilityGatewayEndpoint == "" {
		return fmt.Errorf("config: availability_gateway_endpoint must not be empty")
	}
	if c.CertificatesPath == "" {
		return fmt.Errorf("config: certificates_path must not be empty")
	}
	if c.PrivateKeyPath == "" {
		return fmt.Errorf("config: private_key_path must not be empty")
	}
	if c.PollingIntervalSeconds == 0 {
		return fmt.Errorf("config: polling_interval_seconds must be > 0")
	}
	if c.Storage.Adapter == "" {
		return fmt.Errorf("config: storage.adapter must not be empty")
	}
	if c.MaxDeltaSize == 0 {
		return fmt.Errorf("config: max_delta_size must be > 0")
	}

	profile, err := ResolveProfile(c.Profile)
	if err != nil {
		return err
	}
	if c.TreeHeight != profile.Primary.Height {
		return fmt.Errorf("config: tree_height %d does not match profile %q's primary tree height %d",
			c.TreeHeight, c.Profile, profile.Primary.Height)
	}
	c.resolved = profile
	return nil
}

// Load parses a flat TOML-like document into a Config seeded from
// Default(), then validates it. Recognized sections: [gateway],
// [committee], [tree]. The "storage" key is a one-line inline YAML flow
// document, e.g. storage = "{adapter: memory}".
func Load(data []byte) (*Config, error) {
	cfg := Default()

	var section string
	lines := strings.Split(string(data), "\n")
	for lineNum, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("line %d: expected key = value, got %q", lineNum+1, line)
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])

		var err error
		switch section {
		case "", "gateway":
			err = applyGateway(cfg, key, val, lineNum+1)
		case "committee":
			err = applyCommittee(cfg, key, val, lineNum+1)
		case "tree":
			err = applyTree(cfg, key, val, lineNum+1)
		default:
			err = fmt.Errorf("line %d: unknown section [%s]", lineNum+1, section)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyGateway(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "availability_gateway_endpoint":
		cfg.AvailabilityGatewayEndpoint = unquote(val)
	case "certificates_path":
		cfg.CertificatesPath = unquote(val)
	case "private_key_path":
		cfg.PrivateKeyPath = unquote(val)
	case "storage":
		sc, err := parseStorageConfig(unquote(val))
		if err != nil {
			return fmt.Errorf("line %d: storage: %w", lineNum, err)
		}
		cfg.Storage = sc
	default:
		return fmt.Errorf("line %d: unknown key %q in [gateway]", lineNum, key)
	}
	return nil
}

func applyCommittee(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "polling_interval_seconds":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid polling_interval_seconds: %w", lineNum, err)
		}
		cfg.PollingIntervalSeconds = uint(n)
	case "max_delta_size":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid max_delta_size: %w", lineNum, err)
		}
		cfg.MaxDeltaSize = uint(n)
	default:
		return fmt.Errorf("line %d: unknown key %q in [committee]", lineNum, key)
	}
	return nil
}

func applyTree(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "height":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid tree height: %w", lineNum, err)
		}
		cfg.TreeHeight = uint(n)
	case "profile":
		cfg.Profile = ProfileName(unquote(val))
	default:
		return fmt.Errorf("line %d: unknown key %q in [tree]", lineNum, key)
	}
	return nil
}

// parseStorageConfig parses the inline YAML flow document assigned to the
// "storage" key, e.g. "{adapter: memory}" or
// "{adapter: redis, options: {addr: \"127.0.0.1:6379\"}}".
func parseStorageConfig(s string) (StorageConfig, error) {
	var sc StorageConfig
	if err := yaml.Unmarshal([]byte(s), &sc); err != nil {
		return StorageConfig{}, err
	}
	return sc, nil
}

// unquote strips surrounding double quotes from a string value.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
